package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/xid"
	"github.com/shopspring/decimal"

	"github.com/nanoexch/orderbook"
	"github.com/nanoexch/orderbook/store"
)

type placeOrderRequest struct {
	ID          string `json:"id,omitempty"` // optional, minted when absent
	Side        string `json:"side"`         // "buy" | "sell"
	Price       string `json:"price"`
	Quantity    string `json:"quantity"`
	TimeInForce string `json:"time_in_force,omitempty"` // "gtc" (default) | "ioc"
}

type placeOrderResponse struct {
	OrderID    string          `json:"order_id"`
	Trades     []book.Trade    `json:"trades"`
	Remaining  decimal.Decimal `json:"remaining"`
	Resting    bool            `json:"resting"`
	RequestID  string          `json:"request_id"`
	ReceivedAt time.Time       `json:"received_at"`
}

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		os.Stderr.WriteString("bookd: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger := newLogger(cfg)
	book.SetLogger(logger)

	st, err := store.Open(cfg.Storage.Path)
	if err != nil {
		logger.Error("failed to open trade store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	live := book.NewLiveBook(cfg.Book.Instrument, store.NewRecorder(st))
	go func() {
		_ = live.Start()
	}()

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: newRouter(live, st, cfg, logger),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("bookd listening", "addr", cfg.Server.Addr, "instrument", cfg.Book.Instrument)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(shutdownCtx)
	if err := live.Shutdown(shutdownCtx); err != nil {
		logger.Error("book shutdown incomplete", "error", err)
	}
	logger.Info("bookd stopped")
}

// newRouter wires the HTTP API. The request timeout applies to the regular
// endpoints only; the websocket stream is long-lived and must not have its
// context canceled after the timeout elapses.
func newRouter(live *book.LiveBook, st *store.Store, cfg *Config, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(time.Duration(cfg.Server.TimeoutSec) * time.Second))

		r.Post("/orders", handlePlaceOrder(live))
		r.Put("/orders/{id}", handleModifyOrder(live))
		r.Delete("/orders/{id}", handleCancelOrder(live))
		r.Get("/depth", handleDepth(live, cfg.Book.DepthLimit))
		r.Get("/trades", handleListTrades(st))
	})

	r.Get("/depth/stream", handleDepthStream(live, cfg, logger))

	return r
}

func writeProblem(w http.ResponseWriter, r *http.Request, code int, title, detail string) {
	reqID := middleware.GetReqID(r.Context())
	w.Header().Set("Content-Type", "application/problem+json")
	w.Header().Set("X-Request-ID", reqID)
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"title":      title,
		"status":     code,
		"detail":     detail,
		"instance":   r.URL.Path,
		"request_id": reqID,
	})
}

func writeJSON(w http.ResponseWriter, r *http.Request, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Request-ID", middleware.GetReqID(r.Context()))
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// toBookOrder validates the raw request and builds the order the book
// accepts. All input checking happens here; the book itself assumes
// well-formed orders.
func toBookOrder(req placeOrderRequest) (*book.Order, error) {
	side, err := parseSide(req.Side)
	if err != nil {
		return nil, err
	}

	tif := book.GoodTillCancel
	switch strings.ToLower(strings.TrimSpace(req.TimeInForce)) {
	case "", "gtc":
	case "ioc":
		tif = book.ImmediateOrCancel
	default:
		return nil, errors.New("time_in_force must be gtc or ioc")
	}

	price, err := decimal.NewFromString(req.Price)
	if err != nil {
		return nil, errors.New("price must be a decimal number")
	}

	quantity, err := decimal.NewFromString(req.Quantity)
	if err != nil || !quantity.IsPositive() {
		return nil, errors.New("quantity must be a positive decimal number")
	}

	id := strings.TrimSpace(req.ID)
	if id == "" {
		id = xid.New().String()
	}

	return book.NewOrder(id, side, tif, price, quantity), nil
}

func parseSide(s string) (book.Side, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "buy":
		return book.Buy, nil
	case "sell":
		return book.Sell, nil
	}
	return 0, errors.New("side must be buy or sell")
}

func handlePlaceOrder(live *book.LiveBook) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req placeOrderRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeProblem(w, r, http.StatusBadRequest, "invalid_json", err.Error())
			return
		}

		order, err := toBookOrder(req)
		if err != nil {
			writeProblem(w, r, http.StatusBadRequest, "validation_error", err.Error())
			return
		}

		trades, err := live.Submit(r.Context(), order)
		if err != nil {
			writeProblem(w, r, http.StatusInternalServerError, "engine_error", err.Error())
			return
		}

		writeJSON(w, r, http.StatusCreated, placeOrderResponse{
			OrderID:    order.ID,
			Trades:     trades,
			Remaining:  order.Remaining,
			Resting:    !order.IsFilled() && order.TimeInForce == book.GoodTillCancel,
			RequestID:  middleware.GetReqID(r.Context()),
			ReceivedAt: time.Now().UTC(),
		})
	}
}

func handleModifyOrder(live *book.LiveBook) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req placeOrderRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeProblem(w, r, http.StatusBadRequest, "invalid_json", err.Error())
			return
		}
		req.ID = chi.URLParam(r, "id")

		order, err := toBookOrder(req)
		if err != nil {
			writeProblem(w, r, http.StatusBadRequest, "validation_error", err.Error())
			return
		}

		trades, err := live.Modify(r.Context(), order)
		if err != nil {
			writeProblem(w, r, http.StatusInternalServerError, "engine_error", err.Error())
			return
		}

		writeJSON(w, r, http.StatusOK, placeOrderResponse{
			OrderID:    order.ID,
			Trades:     trades,
			Remaining:  order.Remaining,
			RequestID:  middleware.GetReqID(r.Context()),
			ReceivedAt: time.Now().UTC(),
		})
	}
}

func handleCancelOrder(live *book.LiveBook) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := live.Cancel(r.Context(), chi.URLParam(r, "id")); err != nil {
			writeProblem(w, r, http.StatusInternalServerError, "engine_error", err.Error())
			return
		}
		w.Header().Set("X-Request-ID", middleware.GetReqID(r.Context()))
		w.WriteHeader(http.StatusNoContent)
	}
}

// maxDepthQueryLimit bounds the per-request depth size; the book clamps its
// own allocations as well, this keeps responses reasonably sized.
const maxDepthQueryLimit = 1000

func handleDepth(live *book.LiveBook, defaultLimit int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := defaultLimit
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 || n > maxDepthQueryLimit {
				writeProblem(w, r, http.StatusBadRequest, "validation_error",
					"limit must be a positive integer up to "+strconv.Itoa(maxDepthQueryLimit))
				return
			}
			limit = n
		}

		depth, err := live.Depth(r.Context(), limit)
		if err != nil {
			writeProblem(w, r, http.StatusInternalServerError, "engine_error", err.Error())
			return
		}
		writeJSON(w, r, http.StatusOK, depth)
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Depth data is public; cross-origin reads are fine.
	CheckOrigin: func(*http.Request) bool { return true },
}

// handleDepthStream pushes depth snapshots over a websocket at the
// configured interval until the client goes away.
func handleDepthStream(live *book.LiveBook, cfg *Config, logger *slog.Logger) http.HandlerFunc {
	interval := time.Duration(cfg.Book.StreamIntervalMS) * time.Millisecond

	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// Drain client frames so close handshakes are noticed.
		go func() {
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-r.Context().Done():
				return
			case <-ticker.C:
				depth, err := live.Depth(r.Context(), cfg.Book.DepthLimit)
				if err != nil {
					logger.Warn("depth stream read failed", "error", err)
					return
				}
				if err := conn.WriteJSON(depth); err != nil {
					return
				}
			}
		}
	}
}

func handleListTrades(st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID := r.URL.Query().Get("order_id")
		if orderID == "" {
			writeProblem(w, r, http.StatusBadRequest, "validation_error", "order_id required")
			return
		}

		legs, err := st.ListByOrder(orderID)
		if err != nil {
			writeProblem(w, r, http.StatusInternalServerError, "db_error", err.Error())
			return
		}
		writeJSON(w, r, http.StatusOK, legs)
	}
}
