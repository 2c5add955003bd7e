package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/factoryd/internal/api/models"
	"github.com/smazurov/factoryd/internal/led"
)

// registerLEDRoutes registers LED control endpoints
func (s *Server) registerLEDRoutes() {
	if s.options.LEDs != nil {
		huma.Register(s.api, huma.Operation{
			OperationID: "get-leds",
			Method:      http.MethodGet,
			Path:        "/api/leds",
			Summary:     "Get LED State",
			Description: "Last level driven onto each LED line",
			Tags:        []string{"leds"},
			Errors:      []int{401},
			Security:    withAuth(),
		}, func(ctx context.Context, input *struct{}) (*models.LEDResponse, error) {
			state := s.options.LEDs.State()
			return &models.LEDResponse{
				Body: models.LEDData{Lines: state.Lines, UpdatedAt: state.UpdatedAt},
			}, nil
		})
	}

	if s.options.Commands == nil {
		s.logger.Debug("LED controller not available, skipping LED control route")
		return
	}

	huma.Register(s.api, huma.Operation{
		OperationID: "set-leds",
		Method:      http.MethodPut,
		Path:        "/api/leds",
		Summary:     "Set LEDs",
		Description: "Turn all four LEDs on or off, as led_ctrl does",
		Tags:        []string{"leds"},
		Errors:      []int{400, 401, 500},
		Security:    withAuth(),
	}, func(ctx context.Context, input *models.SetLEDRequest) (*struct{}, error) {
		level := led.Off
		if input.Body.On {
			level = led.On
		}
		if err := s.options.Commands.SetLEDs(level); err != nil {
			return nil, huma.Error500InternalServerError("Failed to control LEDs", err)
		}
		return &struct{}{}, nil
	})
}
