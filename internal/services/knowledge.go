package services

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/HaiderAli3D/LOKI-AI/internal/data/repos/knowledge"
	types "github.com/HaiderAli3D/LOKI-AI/internal/domain"
	"github.com/HaiderAli3D/LOKI-AI/internal/pkg/dbctx"
	"github.com/HaiderAli3D/LOKI-AI/internal/platform/apierr"
	"github.com/HaiderAli3D/LOKI-AI/internal/platform/logger"
)

const defaultKnowledgeContextLimit = 10000

type IngestFragmentInput struct {
	TopicID   string
	Title     string
	Content   string
	SourceRef string
	CreatedBy *uuid.UUID
}

type KnowledgeService interface {
	// Ingest stores a fragment unless byte-identical content already
	// exists; the bool reports whether a new row was created.
	Ingest(dbc dbctx.Context, input IngestFragmentInput) (*types.KnowledgeFragment, bool, error)
	// Lookup returns fragments for the exact topic, its two-level parent
	// when the id has three or more levels, and the "general" bucket.
	Lookup(dbc dbctx.Context, topicID string) ([]*types.KnowledgeFragment, error)
	// ContextForTopic renders the lookup result into a single prompt
	// block, tail-truncated at the configured character limit.
	ContextForTopic(dbc dbctx.Context, topicID string) (string, error)
	ListByTopic(dbc dbctx.Context, topicID string) ([]*types.KnowledgeFragment, error)
}

type knowledgeService struct {
	log          *logger.Logger
	fragmentRepo knowledge.FragmentRepo
	topics       TopicService
	contextLimit int
}

func NewKnowledgeService(
	log *logger.Logger,
	fragmentRepo knowledge.FragmentRepo,
	topics TopicService,
	contextLimit int,
) KnowledgeService {
	if contextLimit <= 0 {
		contextLimit = defaultKnowledgeContextLimit
	}
	return &knowledgeService{
		log:          log.With("service", "KnowledgeService"),
		fragmentRepo: fragmentRepo,
		topics:       topics,
		contextLimit: contextLimit,
	}
}

func ContentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

func (s *knowledgeService) Ingest(dbc dbctx.Context, input IngestFragmentInput) (*types.KnowledgeFragment, bool, error) {
	topicID := strings.TrimSpace(input.TopicID)
	title := strings.TrimSpace(input.Title)
	if topicID == "" {
		return nil, false, apierr.Invalid(fmt.Errorf("missing topic_id"))
	}
	if title == "" {
		return nil, false, apierr.Invalid(fmt.Errorf("missing title"))
	}
	if strings.TrimSpace(input.Content) == "" {
		return nil, false, apierr.Invalid(fmt.Errorf("missing content"))
	}
	if topicID != types.GeneralTopicID {
		if _, ok := s.topics.Get(topicID); !ok {
			return nil, false, apierr.Invalid(fmt.Errorf("unknown topic_id %q", topicID))
		}
	}

	hash := ContentHash(input.Content)
	existing, err := s.fragmentRepo.GetByContentHash(dbc, hash)
	if err != nil {
		return nil, false, apierr.Storage(fmt.Errorf("check fragment hash: %w", err))
	}
	if existing != nil {
		s.log.Info("fragment already ingested", "topic_id", topicID, "fragment_id", existing.ID)
		return existing, false, nil
	}

	row := &types.KnowledgeFragment{
		ID:          uuid.New(),
		TopicID:     topicID,
		Title:       title,
		Content:     input.Content,
		SourceRef:   strings.TrimSpace(input.SourceRef),
		ContentHash: hash,
		CreatedBy:   input.CreatedBy,
	}
	created, err := s.fragmentRepo.Create(dbc, []*types.KnowledgeFragment{row})
	if err != nil {
		return nil, false, apierr.Storage(fmt.Errorf("store fragment: %w", err))
	}
	s.log.Info("fragment ingested", "topic_id", topicID, "fragment_id", created[0].ID)
	return created[0], true, nil
}

func (s *knowledgeService) Lookup(dbc dbctx.Context, topicID string) ([]*types.KnowledgeFragment, error) {
	topicID = strings.TrimSpace(topicID)
	ids := []string{}
	if topicID != "" {
		ids = append(ids, topicID)
	}
	if parent := s.topics.ParentOf(topicID); parent != "" && parent != topicID {
		ids = append(ids, parent)
	}
	if topicID != types.GeneralTopicID {
		ids = append(ids, types.GeneralTopicID)
	}
	if len(ids) == 0 {
		return []*types.KnowledgeFragment{}, nil
	}

	rows, err := s.fragmentRepo.ListByTopicIDs(dbc, ids)
	if err != nil {
		return nil, apierr.Storage(fmt.Errorf("look up fragments: %w", err))
	}

	// Exact topic first, then parent, then general; creation order
	// within each bucket.
	rank := make(map[string]int, len(ids))
	for i, id := range ids {
		rank[id] = i
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return rank[rows[i].TopicID] < rank[rows[j].TopicID]
	})
	return rows, nil
}

func (s *knowledgeService) ContextForTopic(dbc dbctx.Context, topicID string) (string, error) {
	rows, err := s.Lookup(dbc, topicID)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	for _, f := range rows {
		b.WriteString("# ")
		b.WriteString(f.Title)
		b.WriteString("\n\n")
		b.WriteString(f.Content)
		b.WriteString("\n\n")
	}
	out := b.String()
	if len(out) > s.contextLimit {
		// Back off to a rune boundary so the cut never leaves an invalid
		// UTF-8 tail in the prompt.
		cut := s.contextLimit
		for cut > 0 && !utf8.RuneStart(out[cut]) {
			cut--
		}
		out = out[:cut] + " …"
	}
	return out, nil
}

func (s *knowledgeService) ListByTopic(dbc dbctx.Context, topicID string) ([]*types.KnowledgeFragment, error) {
	topicID = strings.TrimSpace(topicID)
	if topicID == "" {
		return nil, apierr.Invalid(fmt.Errorf("missing topic_id"))
	}
	rows, err := s.fragmentRepo.ListByTopicIDs(dbc, []string{topicID})
	if err != nil {
		return nil, apierr.Storage(fmt.Errorf("list fragments: %w", err))
	}
	return rows, nil
}
