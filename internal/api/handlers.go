package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/julienschmidt/httprouter"

	"github.com/BTreeMap/ShopChat/internal/messaging"
	"github.com/BTreeMap/ShopChat/internal/models"
	"github.com/BTreeMap/ShopChat/internal/store"
)

// Fixed inputs of the diagnostic endpoints.
const (
	TestAIQuestion = "¿Qué zapatillas Nike tienen disponibles?"
	TestAISender   = "test_phone"
)

// sendMessageRequest is the body of POST /send-message.
type sendMessageRequest struct {
	To      string `json:"to"`
	Message string `json:"message"`
}

func (s *Server) rootHandler(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, models.Success(map[string]interface{}{
		"service":   s.opts.ServiceName,
		"store":     s.storeName(),
		"transport": s.delivery.TransportName(),
		"endpoints": []string{"/webhook", "/twilio/webhook", "/send-message", "/products", "/store", "/conversations/:phone", "/health"},
	}))
}

func (s *Server) storeName() string {
	if s.st == nil {
		return models.DefaultStoreName
	}
	profile, err := s.st.GetStoreProfile()
	if err != nil {
		return models.DefaultStoreName
	}
	return profile.NameOrDefault()
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if s.st == nil {
		writeJSONResponse(w, http.StatusServiceUnavailable, models.Error("Store not configured"))
		return
	}
	profile, err := s.st.GetStoreProfile()
	if err != nil {
		slog.Error("Server.healthHandler: store unreachable", "error", err)
		writeJSONResponse(w, http.StatusServiceUnavailable, models.Error("Store unreachable"))
		return
	}
	products, err := s.st.GetProducts(models.ProductFilter{})
	if err != nil {
		slog.Error("Server.healthHandler: catalog unreachable", "error", err)
		writeJSONResponse(w, http.StatusServiceUnavailable, models.Error("Catalog unreachable"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(map[string]interface{}{
		"store_loaded":  profile != nil,
		"products":      len(products),
		"ai_configured": s.gen != nil && s.gen.AIConfigured(),
		"transport":     s.delivery.TransportName(),
	}))
}

func (s *Server) sendMessageHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxWebhookBytes)
	defer r.Body.Close()

	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.sendMessageHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if strings.TrimSpace(req.To) == "" || strings.TrimSpace(req.Message) == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Missing required fields: to, message"))
		return
	}
	if _, err := messaging.CanonicalizeRecipient(req.To); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}
	if !s.delivery.SendText(r.Context(), req.To, req.Message) {
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to send message"))
		return
	}
	slog.Info("Server.sendMessageHandler: message sent", "to", req.To)
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Message sent successfully", nil))
}

// listProductsHandler serves GET /products?categoria=&marca=&search=.
func (s *Server) listProductsHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := models.ProductFilter{Category: q.Get("categoria"), Brand: q.Get("marca")}

	var (
		products []models.Product
		err      error
	)
	if term := strings.TrimSpace(q.Get("search")); term != "" {
		var found []models.Product
		found, err = s.st.SearchProducts(term)
		for _, p := range found {
			if filter.Matches(p) {
				products = append(products, p)
			}
		}
	} else {
		products, err = s.st.GetProducts(filter)
	}
	if err != nil {
		slog.Error("Server.listProductsHandler: query failed", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to load products"))
		return
	}
	if products == nil {
		products = []models.Product{}
	}
	writeJSONResponse(w, http.StatusOK, models.Success(products))
}

func (s *Server) getProductHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id, err := strconv.ParseInt(ps.ByName("id"), 10, 64)
	if err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid product id"))
		return
	}
	product, err := s.st.GetProductByID(id)
	if errors.Is(err, store.ErrProductNotFound) {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Product not found"))
		return
	}
	if err != nil {
		slog.Error("Server.getProductHandler: query failed", "id", id, "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to load product"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(product))
}

func (s *Server) storeHandler(w http.ResponseWriter, r *http.Request) {
	profile, err := s.st.GetStoreProfile()
	if err != nil {
		slog.Error("Server.storeHandler: query failed", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to load store profile"))
		return
	}
	if profile == nil {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Store profile not loaded"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(profile))
}

// conversationsHandler serves GET /conversations/:phone?limit=, newest first.
func (s *Server) conversationsHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	limit := store.DefaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeJSONResponse(w, http.StatusBadRequest, models.Error("limit must be a positive integer"))
			return
		}
		limit = n
	}
	records, err := s.st.GetRecentConversations(ps.ByName("phone"), limit)
	if err != nil {
		slog.Error("Server.conversationsHandler: query failed", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to load conversations"))
		return
	}
	if records == nil {
		records = []models.ConversationRecord{}
	}
	writeJSONResponse(w, http.StatusOK, models.Success(records))
}

// testAIHandler runs the generator on a fixed question.
func (s *Server) testAIHandler(w http.ResponseWriter, r *http.Request) {
	if s.gen == nil {
		writeJSONResponse(w, http.StatusServiceUnavailable, models.Error("Generator not configured"))
		return
	}
	reply := s.gen.Generate(r.Context(), TestAIQuestion, TestAISender)
	writeJSONResponse(w, http.StatusOK, models.Success(map[string]interface{}{
		"question":      TestAIQuestion,
		"response":      reply,
		"ai_configured": s.gen.AIConfigured(),
	}))
}

// testWhatsAppHandler reports transport configuration without secrets.
func (s *Server) testWhatsAppHandler(w http.ResponseWriter, r *http.Request) {
	transport := s.delivery.TransportName()
	writeJSONResponse(w, http.StatusOK, models.Success(map[string]interface{}{
		"transport":              transport,
		"transport_configured":   transport != "none",
		"webhook_verification":   s.opts.VerifyToken != "",
		"signature_verification": s.opts.AppSecret != "",
		"twilio_signature":       s.opts.TwilioAuthToken != "",
	}))
}
