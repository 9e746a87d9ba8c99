package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"archie-core-shopify-sync/internal/application"
	"archie-core-shopify-sync/internal/domain"

	"github.com/rs/zerolog"
)

type connectRequest struct {
	StoreEndpoint string `json:"store_endpoint"`
	AccessToken   string `json:"access_token"`
	APIKey        string `json:"api_key"`
	APISecret     string `json:"api_secret"`
}

type connectResponse struct {
	Success    bool                      `json:"success"`
	Connection *domain.ConnectionSummary `json:"connection"`
}

type syncOrdersRequest struct {
	Mode   string `json:"mode"`
	Cursor string `json:"cursor"`
	LogID  string `json:"log_id"`
}

type syncProductsResponse struct {
	Processed int    `json:"processed"`
	LogID     string `json:"log_id"`
}

type cronSyncRequest struct {
	Mode string `json:"mode"`
}

type cronDispatchResponse struct {
	Dispatched bool   `json:"dispatched"`
	WorkflowID string `json:"workflow_id"`
	RunID      string `json:"run_id"`
}

func connectHandler(connections ConnectionManager, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		ownerID := domain.GetOwnerIDFromContext(ctx)

		var req connectRequest
		if err := decodeBody(r, &req); err != nil {
			writeError(w, logger, err)
			return
		}

		summary, err := connections.Connect(ctx, application.ConnectInput{
			OwnerID:       ownerID,
			StoreEndpoint: req.StoreEndpoint,
			AccessToken:   req.AccessToken,
			APIKey:        req.APIKey,
			APISecret:     req.APISecret,
		})
		if err != nil {
			writeError(w, logger, err)
			return
		}

		writeJSON(w, http.StatusOK, connectResponse{Success: true, Connection: summary})
	}
}

func getConnectionHandler(connections ConnectionManager, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		summary, err := connections.GetConnection(ctx, domain.GetOwnerIDFromContext(ctx))
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, summary)
	}
}

func disconnectHandler(connections ConnectionManager, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		ownerID := domain.GetOwnerIDFromContext(ctx)
		entry, err := connections.Disconnect(ctx, ownerID, ownerID)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, entry)
	}
}

func syncOrdersHandler(triggers SyncTrigger, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req syncOrdersRequest
		if err := decodeBody(r, &req); err != nil {
			writeError(w, logger, err)
			return
		}
		mode, err := domain.ParseSyncMode(req.Mode)
		if err != nil {
			writeError(w, logger, err)
			return
		}

		result, err := triggers.SyncOrders(ctx, domain.GetOwnerIDFromContext(ctx), mode, req.Cursor, req.LogID)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

func syncProductsHandler(triggers SyncTrigger, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		result, err := triggers.SyncProducts(ctx, domain.GetOwnerIDFromContext(ctx))
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, syncProductsResponse{Processed: result.Processed, LogID: result.LogID})
	}
}

func syncStatusHandler(triggers SyncTrigger, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		report, err := triggers.Status(ctx, domain.GetOwnerIDFromContext(ctx))
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, report)
	}
}

func syncHistoryHandler(triggers SyncTrigger, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		limit, err := queryInt(r.URL.Query().Get("limit"), "limit")
		if err != nil {
			writeError(w, logger, err)
			return
		}
		entries, err := triggers.History(ctx, domain.GetOwnerIDFromContext(ctx), limit)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		if entries == nil {
			entries = []*domain.SyncLogEntry{}
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"entries": entries})
	}
}

// cronSyncHandler runs or dispatches the fleet-wide sync. Mode comes from the JSON body or ?mode=.
func cronSyncHandler(triggers SyncTrigger, starter FleetStarter, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req cronSyncRequest
		if err := decodeBody(r, &req); err != nil {
			writeError(w, logger, err)
			return
		}
		if req.Mode == "" {
			req.Mode = r.URL.Query().Get("mode")
		}
		mode, err := domain.ParseSyncMode(req.Mode)
		if err != nil {
			writeError(w, logger, err)
			return
		}

		if starter != nil {
			workflowID, runID, err := starter.StartFleetSync(ctx, mode)
			if err != nil {
				writeError(w, logger, err)
				return
			}
			logger.Info().Str("workflowId", workflowID).Str("runId", runID).Str("mode", string(mode)).Msg("Fleet sync workflow dispatched")
			writeJSON(w, http.StatusAccepted, cronDispatchResponse{Dispatched: true, WorkflowID: workflowID, RunID: runID})
			return
		}

		result, err := triggers.SyncFleet(ctx, application.FleetSyncRequest{Mode: mode, InitiatedBy: "cron"})
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

func listOrdersHandler(dashboard DashboardReader, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		q := r.URL.Query()

		filter := domain.OrderFilter{
			FinancialStatus:   strings.TrimSpace(q.Get("financial_status")),
			FulfillmentStatus: strings.TrimSpace(q.Get("fulfillment_status")),
		}
		var err error
		if filter.Since, err = queryTime(q.Get("since"), "since"); err != nil {
			writeError(w, logger, err)
			return
		}
		if filter.Until, err = queryTime(q.Get("until"), "until"); err != nil {
			writeError(w, logger, err)
			return
		}
		if filter.Limit, err = queryInt(q.Get("limit"), "limit"); err != nil {
			writeError(w, logger, err)
			return
		}
		if filter.Offset, err = queryInt(q.Get("offset"), "offset"); err != nil {
			writeError(w, logger, err)
			return
		}

		orders, err := dashboard.ListOrders(ctx, domain.GetOwnerIDFromContext(ctx), filter)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		if orders == nil {
			orders = []*domain.Order{}
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"orders": orders})
	}
}

func listProductsHandler(dashboard DashboardReader, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		q := r.URL.Query()

		filter := domain.ProductFilter{Search: strings.TrimSpace(q.Get("search"))}
		var err error
		if filter.Limit, err = queryInt(q.Get("limit"), "limit"); err != nil {
			writeError(w, logger, err)
			return
		}
		if filter.Offset, err = queryInt(q.Get("offset"), "offset"); err != nil {
			writeError(w, logger, err)
			return
		}

		products, err := dashboard.ListProducts(ctx, domain.GetOwnerIDFromContext(ctx), filter)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		if products == nil {
			products = []*domain.Product{}
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"products": products})
	}
}

func summaryHandler(dashboard DashboardReader, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		summary, err := dashboard.Summary(ctx, domain.GetOwnerIDFromContext(ctx))
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, summary)
	}
}

func salesTrendHandler(dashboard DashboardReader, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		days, err := queryInt(r.URL.Query().Get("days"), "days")
		if err != nil {
			writeError(w, logger, err)
			return
		}
		trend, err := dashboard.SalesTrend(ctx, domain.GetOwnerIDFromContext(ctx), days)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"days": trend})
	}
}

func statusDistributionHandler(dashboard DashboardReader, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		counts, err := dashboard.StatusDistribution(ctx, domain.GetOwnerIDFromContext(ctx))
		if err != nil {
			writeError(w, logger, err)
			return
		}
		if counts == nil {
			counts = []domain.StatusCount{}
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"statuses": counts})
	}
}

func topProductsHandler(dashboard DashboardReader, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		limit, err := queryInt(r.URL.Query().Get("limit"), "limit")
		if err != nil {
			writeError(w, logger, err)
			return
		}
		top, err := dashboard.TopProducts(ctx, domain.GetOwnerIDFromContext(ctx), limit)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		if top == nil {
			top = []domain.TopProduct{}
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"products": top})
	}
}

// queryInt parses an optional non-negative integer parameter; empty yields 0
func queryInt(raw, field string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, domain.NewValidationError(field, field+" must be a non-negative integer")
	}
	return n, nil
}

// queryTime parses an optional RFC3339 timestamp parameter
func queryTime(raw, field string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, domain.NewValidationError(field, field+" must be an RFC3339 timestamp")
	}
	return &t, nil
}
