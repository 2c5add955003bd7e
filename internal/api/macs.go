package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/factoryd/internal/api/models"
	"github.com/smazurov/factoryd/internal/mac"
)

func (s *Server) registerMACRoutes() {
	if s.options.Commands == nil {
		s.logger.Debug("Flash store not available, skipping MAC routes")
		return
	}

	huma.Register(s.api, huma.Operation{
		OperationID: "get-macs",
		Method:      http.MethodGet,
		Path:        "/api/macs",
		Summary:     "Get MAC Addresses",
		Description: "Read the ath0, eth0 and eth1 addresses from the flash partition",
		Tags:        []string{"macs"},
		Errors:      []int{401, 500},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct{}) (*models.MACResponse, error) {
		return s.readMACs()
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "set-macs",
		Method:      http.MethodPut,
		Path:        "/api/macs",
		Summary:     "Set MAC Addresses",
		Description: "Write the base address to ath0 and its two successors to eth0 and eth1, as set_wifi_mac does",
		Tags:        []string{"macs"},
		Errors:      []int{400, 401, 500},
		Security:    withAuth(),
	}, func(ctx context.Context, input *models.SetMACRequest) (*models.MACResponse, error) {
		addr, err := mac.Parse(input.Body.WiFi)
		if err != nil {
			return nil, huma.Error400BadRequest("Invalid MAC address", err)
		}
		if err := s.options.Commands.SetWiFiMAC(addr); err != nil {
			return nil, huma.Error500InternalServerError("Failed to write MAC addresses", err)
		}
		return s.readMACs()
	})
}

func (s *Server) readMACs() (*models.MACResponse, error) {
	macs, err := s.options.Commands.ReadMACs()
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to read MAC addresses", err)
	}
	return &models.MACResponse{
		Body: models.MACData{
			WiFi: macs.WiFi.String(),
			Eth0: macs.Eth0.String(),
			Eth1: macs.Eth1.String(),
		},
	}, nil
}
