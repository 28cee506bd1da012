package services

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/HaiderAli3D/LOKI-AI/internal/platform/logger"
)

// Topic is an entry in the curriculum catalog. Topics are identified by
// dotted ids ("1.2.1"); the hierarchy is implicit in the id.
type Topic struct {
	ID          string `yaml:"id" json:"id"`
	Title       string `yaml:"title" json:"title"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

type topicCatalog struct {
	Topics []Topic `yaml:"topics"`
}

type TopicService interface {
	All() []Topic
	Get(topicID string) (Topic, bool)
	// ParentOf returns the two-level ancestor of a dotted topic id
	// ("1.2.1" -> "1.2"). Ids with fewer than three levels have no
	// parent worth consulting.
	ParentOf(topicID string) string
	DisplayTitle(topicID string) string
}

type topicService struct {
	log    *logger.Logger
	byID   map[string]Topic
	sorted []Topic
}

func NewTopicService(log *logger.Logger, path string) (TopicService, error) {
	if strings.TrimSpace(path) == "" {
		path = "config/topics.yaml"
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read topic catalog: %w", err)
	}
	var catalog topicCatalog
	if err := yaml.Unmarshal(raw, &catalog); err != nil {
		return nil, fmt.Errorf("parse topic catalog: %w", err)
	}
	if len(catalog.Topics) == 0 {
		return nil, fmt.Errorf("topic catalog %q is empty", path)
	}

	byID := make(map[string]Topic, len(catalog.Topics))
	for _, t := range catalog.Topics {
		t.ID = strings.TrimSpace(t.ID)
		t.Title = strings.TrimSpace(t.Title)
		if t.ID == "" || t.Title == "" {
			return nil, fmt.Errorf("topic catalog %q: entry missing id or title", path)
		}
		if _, dup := byID[t.ID]; dup {
			return nil, fmt.Errorf("topic catalog %q: duplicate topic id %q", path, t.ID)
		}
		byID[t.ID] = t
	}

	sorted := make([]Topic, 0, len(byID))
	for _, t := range byID {
		sorted = append(sorted, t)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	svc := &topicService{
		log:    log.With("service", "TopicService"),
		byID:   byID,
		sorted: sorted,
	}
	svc.log.Info("topic catalog loaded", "path", path, "topics", len(sorted))
	return svc, nil
}

func (s *topicService) All() []Topic {
	out := make([]Topic, len(s.sorted))
	copy(out, s.sorted)
	return out
}

func (s *topicService) Get(topicID string) (Topic, bool) {
	t, ok := s.byID[strings.TrimSpace(topicID)]
	return t, ok
}

func (s *topicService) ParentOf(topicID string) string {
	parts := strings.Split(strings.TrimSpace(topicID), ".")
	if len(parts) < 3 {
		return ""
	}
	return strings.Join(parts[:2], ".")
}

func (s *topicService) DisplayTitle(topicID string) string {
	if t, ok := s.byID[strings.TrimSpace(topicID)]; ok {
		return t.Title
	}
	return topicID
}
