// Package stub provides in-process doubles for the two external services the
// client talks to: the wallet backend and the fake-bank settlement service.
// They implement the real wire contracts closely enough for package tests,
// the e2e suite and local development.
package stub

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"walletapp/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// Context key type to avoid collisions.
type contextKey string

const userContextKey contextKey = "user"

const tokenLifetime = 24 * time.Hour

type walletUser struct {
	ID           string
	FirstName    string
	LastName     string
	Email        string
	PasswordHash string
	Balance      decimal.Decimal
	Transactions []walletTransaction
	Contacts     []models.Contact
}

type walletTransaction struct {
	ID          int64            `json:"id"`
	Amount      decimal.Decimal  `json:"amount"`
	Type        string           `json:"type"`
	Description string           `json:"description"`
	Status      string           `json:"status"`
	Date        time.Time        `json:"date"`
	To          *transactionSide `json:"to,omitempty"`
	From        *transactionSide `json:"from,omitempty"`
}

type transactionSide struct {
	Email string `json:"email"`
}

// WalletServer is an in-memory wallet backend. It hashes passwords with
// bcrypt and issues signed JWTs so the client's bearer-auth path is exercised
// for real.
type WalletServer struct {
	mu       sync.Mutex
	users    map[string]*walletUser // keyed by email
	secret   []byte
	nextTxID int64

	forceStatus int
	forceBody   string

	log *zap.Logger
	mux *http.ServeMux
}

// NewWalletServer creates an empty wallet backend.
func NewWalletServer(log *zap.Logger) *WalletServer {
	if log == nil {
		log = zap.NewNop()
	}
	s := &WalletServer{
		users:  make(map[string]*walletUser),
		secret: []byte(uuid.NewString()),
		log:    log,
		mux:    http.NewServeMux(),
	}

	s.mux.HandleFunc("POST /api/auth/register", s.handleRegister)
	s.mux.HandleFunc("POST /api/auth/login", s.handleLogin)
	s.mux.Handle("GET /api/users/me", s.withAuth(s.handleCurrentUser))
	s.mux.Handle("GET /api/transactions", s.withAuth(s.handleTransactions))
	s.mux.Handle("POST /api/transactions/transfer", s.withAuth(s.handleTransfer))
	s.mux.Handle("POST /api/transactions/deposit", s.withAuth(s.handleDeposit))
	s.mux.Handle("POST /api/transactions/withdraw", s.withAuth(s.handleWithdraw))
	s.mux.Handle("GET /api/contacts", s.withAuth(s.handleListContacts))
	s.mux.Handle("POST /api/contacts", s.withAuth(s.handleAddContact))
	s.mux.Handle("DELETE /api/contacts/{id}", s.withAuth(s.handleRemoveContact))

	return s
}

// FailNextWith makes the next request answer with the given status and raw
// body, bypassing all handlers. One-shot; used to exercise the client's
// error taxonomy.
func (s *WalletServer) FailNextWith(status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.forceStatus = status
	s.forceBody = body
}

func (s *WalletServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	status, body := s.forceStatus, s.forceBody
	s.forceStatus, s.forceBody = 0, ""
	s.mu.Unlock()

	if status != 0 {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
		return
	}
	s.mux.ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func (s *WalletServer) issueToken(email string) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   email,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(tokenLifetime)),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// withAuth resolves the bearer token to a user and puts it on the request
// context, rejecting the request with 401 otherwise.
func (s *WalletServer) withAuth(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			writeError(w, http.StatusUnauthorized, "No autorizado")
			return
		}

		parsed, err := jwt.ParseWithClaims(token, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
			return s.secret, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil || !parsed.Valid {
			writeError(w, http.StatusUnauthorized, "No autorizado")
			return
		}

		email, err := parsed.Claims.GetSubject()
		if err != nil {
			writeError(w, http.StatusUnauthorized, "No autorizado")
			return
		}

		s.mu.Lock()
		user, ok := s.users[email]
		s.mu.Unlock()
		if !ok {
			writeError(w, http.StatusUnauthorized, "No autorizado")
			return
		}

		ctx := context.WithValue(r.Context(), userContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func userFromContext(r *http.Request) *walletUser {
	user, _ := r.Context().Value(userContextKey).(*walletUser)
	return user
}

func (u *walletUser) profile() models.User {
	return models.User{
		ID:        u.ID,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Email:     u.Email,
		Balance:   u.Balance,
	}
}

type registerBody struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

func (s *WalletServer) handleRegister(w http.ResponseWriter, r *http.Request) {
	var body registerBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Cuerpo de la solicitud inválido")
		return
	}
	if body.FirstName == "" || body.LastName == "" || body.Email == "" || body.Password == "" {
		writeError(w, http.StatusBadRequest, "Todos los campos son obligatorios")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(body.Password), bcrypt.DefaultCost)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "No se pudo crear la cuenta")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[body.Email]; exists {
		writeError(w, http.StatusConflict, "El email ya está registrado")
		return
	}

	user := &walletUser{
		ID:           uuid.NewString(),
		FirstName:    body.FirstName,
		LastName:     body.LastName,
		Email:        body.Email,
		PasswordHash: string(hash),
		Balance:      decimal.Zero,
	}
	s.users[body.Email] = user
	writeJSON(w, http.StatusCreated, user.profile())
}

type loginBody struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *WalletServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body loginBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Cuerpo de la solicitud inválido")
		return
	}

	s.mu.Lock()
	user, ok := s.users[body.Email]
	s.mu.Unlock()
	if !ok || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(body.Password)) != nil {
		writeError(w, http.StatusUnauthorized, "Credenciales inválidas")
		return
	}

	token, err := s.issueToken(user.Email)
	if err != nil {
		s.log.Error("signing token failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "No se pudo iniciar sesión")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"token": token,
		"user":  user.profile(),
	})
}

func (s *WalletServer) handleCurrentUser(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r)
	s.mu.Lock()
	profile := user.profile()
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, profile)
}

func (s *WalletServer) handleTransactions(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r)
	s.mu.Lock()
	content := make([]walletTransaction, len(user.Transactions))
	copy(content, user.Transactions)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"content": content})
}

type transferBody struct {
	Email       string          `json:"email"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
}

func (s *WalletServer) handleTransfer(w http.ResponseWriter, r *http.Request) {
	sender := userFromContext(r)

	var body transferBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Cuerpo de la solicitud inválido")
		return
	}
	if !body.Amount.IsPositive() {
		writeError(w, http.StatusBadRequest, "El monto debe ser mayor a 0")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	recipient, ok := s.users[body.Email]
	if !ok {
		writeError(w, http.StatusBadRequest, "Usuario destinatario no encontrado")
		return
	}
	if recipient == sender {
		writeError(w, http.StatusBadRequest, "No podés transferirte a vos mismo")
		return
	}
	if sender.Balance.LessThan(body.Amount) {
		writeError(w, http.StatusBadRequest, "Saldo insuficiente")
		return
	}

	sender.Balance = sender.Balance.Sub(body.Amount)
	recipient.Balance = recipient.Balance.Add(body.Amount)

	now := time.Now().UTC()
	s.nextTxID++
	outgoing := walletTransaction{
		ID:          s.nextTxID,
		Amount:      body.Amount,
		Type:        "outgoing",
		Description: body.Description,
		Status:      "completed",
		Date:        now,
		To:          &transactionSide{Email: recipient.Email},
	}
	sender.Transactions = append(sender.Transactions, outgoing)

	s.nextTxID++
	recipient.Transactions = append(recipient.Transactions, walletTransaction{
		ID:          s.nextTxID,
		Amount:      body.Amount,
		Type:        "incoming",
		Description: body.Description,
		Status:      "completed",
		Date:        now,
		From:        &transactionSide{Email: sender.Email},
	})

	writeJSON(w, http.StatusOK, outgoing)
}

type fundingBody struct {
	CVU         string          `json:"cvu"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
}

func (s *WalletServer) handleDeposit(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r)

	var body fundingBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Cuerpo de la solicitud inválido")
		return
	}
	if !body.Amount.IsPositive() {
		writeError(w, http.StatusBadRequest, "El monto debe ser mayor a 0")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	user.Balance = user.Balance.Add(body.Amount)
	s.nextTxID++
	tx := walletTransaction{
		ID:          s.nextTxID,
		Amount:      body.Amount,
		Type:        "load",
		Description: body.Description,
		Status:      "completed",
		Date:        time.Now().UTC(),
	}
	user.Transactions = append(user.Transactions, tx)

	writeJSON(w, http.StatusOK, tx)
}

func (s *WalletServer) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r)

	var body fundingBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Cuerpo de la solicitud inválido")
		return
	}
	if !body.Amount.IsPositive() {
		writeError(w, http.StatusBadRequest, "El monto debe ser mayor a 0")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if user.Balance.LessThan(body.Amount) {
		writeError(w, http.StatusBadRequest, "Saldo insuficiente")
		return
	}

	user.Balance = user.Balance.Sub(body.Amount)
	s.nextTxID++
	tx := walletTransaction{
		ID:          s.nextTxID,
		Amount:      body.Amount,
		Type:        "outgoing",
		Description: body.Description,
		Status:      "completed",
		Date:        time.Now().UTC(),
	}
	user.Transactions = append(user.Transactions, tx)

	writeJSON(w, http.StatusOK, tx)
}

func (s *WalletServer) handleListContacts(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r)
	s.mu.Lock()
	contacts := make([]models.Contact, len(user.Contacts))
	copy(contacts, user.Contacts)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, contacts)
}

type contactBody struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
}

func (s *WalletServer) handleAddContact(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r)

	var body contactBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Cuerpo de la solicitud inválido")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Contacts reference registered wallet users; the contact id is the
	// referenced user's id.
	target, ok := s.users[body.Email]
	if !ok {
		writeError(w, http.StatusNotFound, "Usuario no encontrado")
		return
	}
	for _, existing := range user.Contacts {
		if existing.ID == target.ID {
			writeError(w, http.StatusConflict, "El contacto ya existe")
			return
		}
	}

	contact := models.Contact{
		ID:         target.ID,
		FirstName:  body.FirstName,
		LastName:   body.LastName,
		Email:      body.Email,
		IsFavorite: true,
	}
	user.Contacts = append(user.Contacts, contact)
	writeJSON(w, http.StatusCreated, contact)
}

func (s *WalletServer) handleRemoveContact(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r)
	id := r.PathValue("id")

	s.mu.Lock()
	defer s.mu.Unlock()

	for i, contact := range user.Contacts {
		if contact.ID == id {
			user.Contacts = append(user.Contacts[:i], user.Contacts[i+1:]...)
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}
	writeError(w, http.StatusNotFound, "Contacto no encontrado")
}
