package brew

import "github.com/rs/zerolog"

// Steps are the synchronous side effects of making tea.
type Steps interface {
	PlaceTea()
	Pour(water Water)
	Serve()
}

// LoggingSteps performs each step by logging it.
type LoggingSteps struct {
	logger zerolog.Logger
}

func NewLoggingSteps(logger zerolog.Logger) *LoggingSteps {
	return &LoggingSteps{logger: logger.With().Str("component", "TeaMaker").Logger()}
}

func (s *LoggingSteps) PlaceTea() {
	s.logger.Info().Msg("PutTeaInCup -> Tea bag placed in cup")
}

func (s *LoggingSteps) Pour(water Water) {
	s.logger.Info().Str("path", string(water.Path)).Msgf("PourWaterIntoCup -> Pouring %s into cup", water)
}

func (s *LoggingSteps) Serve() {
	s.logger.Info().Msg("ServeCup -> Cup is ready to serve!")
}
