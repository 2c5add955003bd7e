package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/factoryd/internal/api/models"
	"github.com/smazurov/factoryd/internal/logging"
)

func (s *Server) registerLogRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-logs",
		Method:      http.MethodGet,
		Path:        "/api/logs",
		Summary:     "Recent Logs",
		Description: "Entries from the in-memory log buffer, oldest first",
		Tags:        []string{"logs"},
		Errors:      []int{400, 401},
		Security:    withAuth(),
	}, func(ctx context.Context, input *models.LogsRequest) (*models.LogsResponse, error) {
		if input.Level != "" {
			if _, ok := logging.ParseLevel(input.Level); !ok {
				return nil, huma.Error400BadRequest("Unknown log level " + input.Level)
			}
		}

		resp := &models.LogsResponse{}
		resp.Body.Entries = []models.LogEntryData{}
		buffer := logging.GetBuffer()
		if buffer == nil {
			return resp, nil
		}

		for _, e := range buffer.Query(logging.Filter{
			Module:   input.Module,
			MinLevel: input.Level,
			Limit:    input.Limit,
		}) {
			resp.Body.Entries = append(resp.Body.Entries, models.LogEntryData{
				Timestamp:  e.Timestamp,
				Level:      e.Level,
				Module:     e.Module,
				Message:    e.Message,
				Attributes: e.Attributes,
			})
		}
		resp.Body.Count = len(resp.Body.Entries)
		return resp, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-log-levels",
		Method:      http.MethodGet,
		Path:        "/api/logging/levels",
		Summary:     "Log Levels",
		Description: "Effective log level per module, including changes picked up from the config file",
		Tags:        []string{"logs"},
		Errors:      []int{401},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct{}) (*models.LogLevelsResponse, error) {
		resp := &models.LogLevelsResponse{}
		resp.Body.Levels = logging.Levels()
		return resp, nil
	})
}
