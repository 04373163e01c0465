package walletapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"walletapp/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string      `json:"token"`
	User  models.User `json:"user"`
}

// Login authenticates against the backend, persists the returned token and
// caches the user profile. A token-store write failure is logged and the
// login still succeeds; the session just won't survive a restart.
func (c *Client) Login(ctx context.Context, email, password string) (*models.User, error) {
	if err := requireNonEmpty("email", email, "Por favor, completa todos los campos"); err != nil {
		return nil, err
	}
	if err := requireNonEmpty("password", password, "Por favor, completa todos los campos"); err != nil {
		return nil, err
	}

	var res loginResponse
	err := c.doJSON(ctx, "login", http.MethodPost, c.apiBase+"/auth/login", false,
		loginRequest{Email: email, Password: password}, &res, "Login failed")
	if err != nil {
		return nil, err
	}

	if err := c.tokens.StoreToken(res.Token); err != nil {
		c.log.Warn("storing token failed, session will not survive restart", zap.Error(err))
	}
	user := res.User
	c.cacheUser(&user)
	return &user, nil
}

type registerRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

// Register creates an account and returns the new user. It does not log the
// user in; no token is stored.
func (c *Client) Register(ctx context.Context, firstName, lastName, email, password string) (*models.User, error) {
	for field, value := range map[string]string{
		"firstName": firstName,
		"lastName":  lastName,
		"password":  password,
	} {
		if err := requireNonEmpty(field, value, "Por favor, completa todos los campos"); err != nil {
			return nil, err
		}
	}
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}

	var user models.User
	err := c.doJSON(ctx, "register", http.MethodPost, c.apiBase+"/auth/register", false,
		registerRequest{FirstName: firstName, LastName: lastName, Email: email, Password: password},
		&user, "Registration failed")
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetCurrentUser fetches the profile of the authenticated user and refreshes
// the session cache.
func (c *Client) GetCurrentUser(ctx context.Context) (*models.User, error) {
	var user models.User
	err := c.doJSON(ctx, "getCurrentUser", http.MethodGet, c.apiBase+"/users/me", true,
		nil, &user, "Failed to fetch current user")
	if err != nil {
		return nil, err
	}
	c.cacheUser(&user)
	return &user, nil
}

// Logout drops the persisted token and the cached profile locally. The
// backend keeps no session state to tear down.
func (c *Client) Logout() {
	c.invalidateSession()
}

type txParty struct {
	Email string `json:"email"`
}

// backendTransaction is the wire shape of one history record.
type backendTransaction struct {
	ID          json.Number     `json:"id"`
	Amount      decimal.Decimal `json:"amount"`
	Type        string          `json:"type"`
	Description string          `json:"description"`
	Status      string          `json:"status"`
	Date        time.Time       `json:"date"`
	To          *txParty        `json:"to"`
	From        *txParty        `json:"from"`
}

type transactionPage struct {
	Content []backendTransaction `json:"content"`
}

// mapTransaction translates a backend record into the presented model. The
// direction contract is an explicit enumeration; unrecognized types are
// treated as outgoing and logged.
func (c *Client) mapTransaction(tx backendTransaction) models.Transaction {
	amount := tx.Amount.Abs()
	var typ models.TransactionType
	switch tx.Type {
	case "incoming":
		typ = models.TxReceive
	case "outgoing":
		typ = models.TxSend
		amount = amount.Neg()
	case "debin":
		typ = models.TxDebin
	case "load":
		typ = models.TxLoad
	default:
		c.log.Warn("unknown transaction type from backend, treating as outgoing",
			zap.String("type", tx.Type), zap.String("id", tx.ID.String()))
		typ = models.TxSend
		amount = amount.Neg()
	}

	description := tx.Description
	if description == "" {
		description = "Sin descripción"
	}

	recipient := ""
	if tx.To != nil {
		recipient = tx.To.Email
	} else if tx.From != nil {
		recipient = tx.From.Email
	}

	return models.Transaction{
		ID:             tx.ID.String(),
		Amount:         amount,
		Description:    description,
		Status:         models.TransactionStatus(tx.Status),
		Date:           tx.Date,
		Type:           typ,
		RecipientEmail: recipient,
	}
}

// GetTransactions returns the user's history in the backend's order.
// Transactions are built fresh on every call and never cached.
func (c *Client) GetTransactions(ctx context.Context) ([]models.Transaction, error) {
	var page transactionPage
	err := c.doJSON(ctx, "getTransactions", http.MethodGet, c.apiBase+"/transactions", true,
		nil, &page, "Error al obtener transacciones")
	if err != nil {
		return nil, err
	}

	transactions := make([]models.Transaction, 0, len(page.Content))
	for _, tx := range page.Content {
		transactions = append(transactions, c.mapTransaction(tx))
	}
	return transactions, nil
}

type transferRequest struct {
	Email       string          `json:"email"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
}

type transferResponse struct {
	ID json.Number `json:"id"`
}

// Transfer sends money to another wallet user and returns the resulting
// outgoing transaction. After the backend accepts the transfer the cached
// profile is refreshed best-effort; a refresh failure is logged, never
// surfaced.
func (c *Client) Transfer(ctx context.Context, amount decimal.Decimal, recipientEmail, description string) (*models.Transaction, error) {
	if err := ValidateAmount(amount); err != nil {
		return nil, err
	}
	if err := ValidateEmail(recipientEmail); err != nil {
		return nil, err
	}

	var res transferResponse
	err := c.doJSON(ctx, "transfer", http.MethodPost, c.apiBase+"/transactions/transfer", true,
		transferRequest{Email: recipientEmail, Amount: amount, Description: description},
		&res, "Error en la transferencia")
	if err != nil {
		return nil, err
	}

	if _, err := c.GetCurrentUser(ctx); err != nil {
		c.log.Warn("refreshing user after transfer failed", zap.Error(err))
	}

	id := res.ID.String()
	if id == "" {
		id = uuid.NewString()
	}
	if description == "" {
		description = "Transferencia"
	}
	return &models.Transaction{
		ID:             id,
		Amount:         amount.Neg(),
		Description:    description,
		Status:         models.StatusCompleted,
		Date:           time.Now(),
		Type:           models.TxSend,
		RecipientEmail: recipientEmail,
	}, nil
}
