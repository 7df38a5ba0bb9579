package material

import (
	"context"
	"fmt"

	"github.com/MrSnakeDoc/studybot/internal/index"
	"github.com/MrSnakeDoc/studybot/internal/logger"
)

// Source reads the catalog file on every Load. It implements index.Source.
type Source struct {
	loader *Loader
	mapper *Mapper
	logger logger.Logger
}

// NewSource wires a loader and mapper for filePath.
func NewSource(filePath, bot string, log logger.Logger) *Source {
	return &Source{
		loader: NewLoader(filePath),
		mapper: NewMapper(bot),
		logger: log,
	}
}

// Load implements index.Source.
func (s *Source) Load(ctx context.Context) (index.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return index.Snapshot{}, err
	}

	file, err := s.loader.Load()
	if err != nil {
		return index.Snapshot{}, err
	}

	snap, issues, err := s.mapper.Map(file)
	for _, is := range issues {
		s.logger.Warn("catalog entry skipped",
			logger.String("file", s.loader.Path()),
			logger.String("entry", is.String()))
	}
	if err != nil {
		return index.Snapshot{}, fmt.Errorf("failed to map catalog: %w", err)
	}

	s.logger.Info("catalog loaded",
		logger.String("file", s.loader.Path()),
		logger.Int("items", len(snap.Items)))
	return snap, nil
}
