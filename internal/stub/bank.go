package stub

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type bankAccount struct {
	Nombre  string
	Balance decimal.Decimal
}

// BankServer is the fake-bank settlement service: a handful of CVU-keyed
// accounts with holder names. Deposits debit the external account,
// withdrawals credit it; the wallet ledger is somebody else's problem.
type BankServer struct {
	mu       sync.Mutex
	accounts map[string]*bankAccount

	log *zap.Logger
	mux *http.ServeMux
}

// NewBankServer creates a bank pre-seeded with a couple of test accounts.
func NewBankServer(log *zap.Logger) *BankServer {
	if log == nil {
		log = zap.NewNop()
	}
	s := &BankServer{
		accounts: make(map[string]*bankAccount),
		log:      log,
		mux:      http.NewServeMux(),
	}

	s.SeedAccount("0000003100010000000001", "Juan Pérez", decimal.NewFromInt(1_000_000))
	s.SeedAccount("0000003100010000000002", "María García", decimal.NewFromInt(500_000))

	s.mux.HandleFunc("POST /deposit", s.handleDeposit)
	s.mux.HandleFunc("POST /withdraw", s.handleWithdraw)
	return s
}

// SeedAccount creates or replaces an external account.
func (s *BankServer) SeedAccount(cvu, nombre string, balance decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[cvu] = &bankAccount{Nombre: nombre, Balance: balance}
}

// AccountBalance reports an account's balance, for test assertions.
func (s *BankServer) AccountBalance(cvu string) (decimal.Decimal, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.accounts[cvu]
	if !ok {
		return decimal.Zero, false
	}
	return account.Balance, true
}

func (s *BankServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

type settlementBody struct {
	CVU    string          `json:"cvu"`
	Amount decimal.Decimal `json:"amount"`
}

func (s *BankServer) respond(w http.ResponseWriter, account *bankAccount) {
	writeJSON(w, http.StatusOK, map[string]any{
		"data": map[string]any{
			"nombre":     account.Nombre,
			"newBalance": account.Balance,
		},
	})
}

func (s *BankServer) decode(w http.ResponseWriter, r *http.Request) (*settlementBody, bool) {
	var body settlementBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Cuerpo de la solicitud inválido")
		return nil, false
	}
	if !body.Amount.IsPositive() {
		writeError(w, http.StatusBadRequest, "El monto debe ser mayor a 0")
		return nil, false
	}
	return &body, true
}

// handleDeposit debits the external account: money is leaving the bank
// towards the wallet.
func (s *BankServer) handleDeposit(w http.ResponseWriter, r *http.Request) {
	body, ok := s.decode(w, r)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.accounts[body.CVU]
	if !ok {
		writeError(w, http.StatusNotFound, "Cuenta bancaria no encontrada")
		return
	}
	if account.Balance.LessThan(body.Amount) {
		writeError(w, http.StatusBadRequest, "Fondos insuficientes en la cuenta bancaria")
		return
	}

	account.Balance = account.Balance.Sub(body.Amount)
	s.respond(w, account)
}

// handleWithdraw credits the external account: money arriving from the
// wallet.
func (s *BankServer) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	body, ok := s.decode(w, r)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.accounts[body.CVU]
	if !ok {
		writeError(w, http.StatusNotFound, "Cuenta bancaria no encontrada")
		return
	}

	account.Balance = account.Balance.Add(body.Amount)
	s.respond(w, account)
}
