// DiaryKeeper - Local-first Journal Media Storage and Backup
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/diarykeeper

/*
Package api provides the HTTP layer of slotd, the cloud slot service.

Key Components:

  - Handler: slot, list and health endpoints over a slotserver.Store
  - NewRouter: chi route table and middleware stack
  - ResponseWriter: standardized JSON responses (models.APIResponse)
  - Middleware: request IDs, request logging, metrics, rate limiting and
    bearer-token authentication

Endpoints:

	GET  /healthz            liveness plus stored byte count (no auth)
	GET  /metrics            Prometheus exposition (no auth)
	GET  /v1/slots           list the account's slots
	PUT  /v1/slots/{name}    replace a slot with the request body
	GET  /v1/slots/{name}    slot bytes, described by X-Slot-* headers
	HEAD /v1/slots/{name}    slot headers only

Every /v1 route requires "Authorization: Bearer <token>" where the token's
subject names the account. Slot bytes travel as raw bodies; everything else
is JSON in the models.APIResponse envelope.

Usage Example:

	store, _ := slotserver.OpenStore(cfg.DataDir, cfg.MaxUploadSize)
	tokens, _ := slotserver.NewTokenManager(cfg)
	handler := api.NewHandler(store, tokens)
	srv := &http.Server{
	    Addr:              cfg.Addr(),
	    Handler:           api.NewRouter(handler, api.RouterConfigFrom(cfg)),
	    ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
*/
package api
