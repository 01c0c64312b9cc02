/*
   Copyright 2022 The StratusLab pdisk Authors.

   Licensed under the Apache License, Version 2.0 (the "License");
   you may not use this file except in compliance with the License.
   You may obtain a copy of the License at

       http://www.apache.org/licenses/LICENSE-2.0

   Unless required by applicable law or agreed to in writing, software
   distributed under the License is distributed on an "AS IS" BASIS,
   WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
   See the License for the specific language governing permissions and
   limitations under the License.
*/

package run

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stratuslab/pdisk/pkg/dispatcher"
	"github.com/stratuslab/pdisk/pkg/journal"
	"github.com/stratuslab/pdisk/pkg/pdiskbackend"
)

type eHttpServer struct {
	e          *echo.Echo
	dispatcher *dispatcher.Dispatcher
	journal    *journal.Repository
}

type actionRequest struct {
	Size        int64  `json:"size"`
	NewVolumeID string `json:"newVolumeId"`
	Proxy       string `json:"proxy"`
}

type actionResponse struct {
	Volume   string `json:"volume"`
	Action   string `json:"action"`
	Outcome  string `json:"outcome"`
	Value    string `json:"value,omitempty"`
	Command  string `json:"command,omitempty"`
	ExitCode int    `json:"exitCode"`
	Output   string `json:"output,omitempty"`
	Error    string `json:"error,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// journal may be nil, /operations then answers 404.
func newHttpServer(d *dispatcher.Dispatcher, repo *journal.Repository, reg *prometheus.Registry) *eHttpServer {
	h := &eHttpServer{
		e:          echo.New(),
		dispatcher: d,
		journal:    repo,
	}
	h.e.HideBanner = true
	h.e.HidePort = true
	h.e.POST("/luns/:id/:action", h.lunAction)
	h.e.GET("/operations", h.operationList)
	h.e.GET("/healthz", h.health)
	h.e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
	return h
}

func (h *eHttpServer) lunAction(c echo.Context) error {
	action, err := pdiskbackend.ParseAction(c.Param("action"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	}
	var body actionRequest
	if c.Request().ContentLength != 0 {
		if err := c.Bind(&body); err != nil {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		}
	}

	req := dispatcher.Request{
		Proxy:       body.Proxy,
		VolumeID:    c.Param("id"),
		Action:      action,
		SizeMB:      body.Size,
		NewVolumeID: body.NewVolumeID,
	}
	// a client going away must not cut a command sequence short
	res, err := h.dispatcher.Dispatch(context.WithoutCancel(c.Request().Context()), req)

	resp := actionResponse{Volume: req.VolumeID, Action: string(action), Outcome: dispatcher.Status(err)}
	if res != nil {
		resp.Value = res.Value
		resp.Command = res.Command
		resp.ExitCode = res.ExitCode
		resp.Output = res.Output
	}
	if err != nil {
		resp.Error = err.Error()
	}
	return c.JSON(statusCode(err), resp)
}

func statusCode(err error) int {
	var (
		unsupported *pdiskbackend.UnsupportedActionError
		invalid     *pdiskbackend.InvalidRequestError
		cfgErr      *pdiskbackend.ConfigurationError
		execErr     *pdiskbackend.CommandExecutionError
	)
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, dispatcher.ErrVolumeBusy):
		return http.StatusConflict
	case errors.As(err, &unsupported), errors.As(err, &invalid):
		return http.StatusBadRequest
	case errors.As(err, &cfgErr):
		return http.StatusNotFound
	case errors.As(err, &execErr):
		if execErr.Result.Outcome == pdiskbackend.OutcomeAborted {
			return http.StatusGatewayTimeout
		}
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func (h *eHttpServer) operationList(c echo.Context) error {
	if h.journal == nil {
		return c.JSON(http.StatusNotFound, errorResponse{Error: "the operation journal is not configured"})
	}
	limit := 100
	if s := c.QueryParam("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "limit must be a number"})
		}
		limit = n
	}
	ops, err := h.journal.List(c.Request().Context(), c.QueryParam("volume"), limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
	}
	return c.JSON(http.StatusOK, ops)
}

func (h *eHttpServer) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"proxies": h.dispatcher.Config().Main.ISCSIProxies,
		"busy":    h.dispatcher.Busy(),
	})
}
