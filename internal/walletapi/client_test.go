package walletapi

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"walletapp/internal/models"
	"walletapp/internal/stub"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

const seededCVU = "0000003100010000000001"

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// ClientTestSuite drives the client against in-process stub backends.
type ClientTestSuite struct {
	suite.Suite
	wallet    *stub.WalletServer
	bank      *stub.BankServer
	walletSrv *httptest.Server
	bankSrv   *httptest.Server
	client    *Client
	ctx       context.Context
}

// SetupTest runs before each test
func (suite *ClientTestSuite) SetupTest() {
	suite.wallet = stub.NewWalletServer(nil)
	suite.bank = stub.NewBankServer(nil)
	suite.walletSrv = httptest.NewServer(suite.wallet)
	suite.bankSrv = httptest.NewServer(suite.bank)
	suite.client = suite.newClient()
	suite.ctx = context.Background()
}

// TearDownTest runs after each test
func (suite *ClientTestSuite) TearDownTest() {
	suite.walletSrv.Close()
	suite.bankSrv.Close()
}

func (suite *ClientTestSuite) newClient() *Client {
	return NewClient(Config{
		APIBaseURL:  suite.walletSrv.URL + "/api",
		BankBaseURL: suite.bankSrv.URL,
	})
}

func (suite *ClientTestSuite) register(firstName, lastName, email string) {
	_, err := suite.client.Register(suite.ctx, firstName, lastName, email, "secret123")
	require.NoError(suite.T(), err, "failed to register %s", email)
}

func (suite *ClientTestSuite) login(email string) *models.User {
	user, err := suite.client.Login(suite.ctx, email, "secret123")
	require.NoError(suite.T(), err, "failed to login %s", email)
	return user
}

func (suite *ClientTestSuite) TestLoginStoresTokenAndCachesUser() {
	suite.register("Ana", "Pérez", "ana@example.com")
	user := suite.login("ana@example.com")

	assert.Equal(suite.T(), "ana@example.com", user.Email)
	assert.True(suite.T(), user.Balance.IsZero())

	token, err := suite.client.tokens.GetToken()
	require.NoError(suite.T(), err)
	assert.NotEmpty(suite.T(), token, "login must leave a retrievable token")

	cached := suite.client.CachedUser()
	require.NotNil(suite.T(), cached)
	assert.Equal(suite.T(), user.ID, cached.ID)
}

func (suite *ClientTestSuite) TestLoginInvalidCredentials() {
	suite.register("Ana", "Pérez", "ana@example.com")

	_, err := suite.client.Login(suite.ctx, "ana@example.com", "wrong")
	var rejected *BackendRejectedError
	require.ErrorAs(suite.T(), err, &rejected)
	assert.Equal(suite.T(), "Credenciales inválidas", rejected.Message)
	assert.False(suite.T(), rejected.Partial)

	token, err := suite.client.tokens.GetToken()
	require.NoError(suite.T(), err)
	assert.Empty(suite.T(), token, "failed login must not store a token")
}

func (suite *ClientTestSuite) TestLoginEmptyFields() {
	_, err := suite.client.Login(suite.ctx, "", "secret123")
	var verr *ValidationError
	assert.ErrorAs(suite.T(), err, &verr)
}

func (suite *ClientTestSuite) TestRegisterDuplicateEmail() {
	suite.register("Ana", "Pérez", "ana@example.com")

	_, err := suite.client.Register(suite.ctx, "Otra", "Persona", "ana@example.com", "secret123")
	var rejected *BackendRejectedError
	require.ErrorAs(suite.T(), err, &rejected)
	assert.Equal(suite.T(), "El email ya está registrado", rejected.Message)
}

func (suite *ClientTestSuite) TestRegisterDoesNotLogIn() {
	suite.register("Ana", "Pérez", "ana@example.com")

	token, err := suite.client.tokens.GetToken()
	require.NoError(suite.T(), err)
	assert.Empty(suite.T(), token)
	assert.Nil(suite.T(), suite.client.CachedUser())
}

func (suite *ClientTestSuite) TestGetCurrentUserWithoutToken() {
	_, err := suite.client.GetCurrentUser(suite.ctx)
	var expired *SessionExpiredError
	require.ErrorAs(suite.T(), err, &expired)
	assert.Equal(suite.T(), SessionExpiredMessage, expired.UserMessage())
}

func (suite *ClientTestSuite) TestUnauthorizedInvalidatesSession() {
	suite.register("Ana", "Pérez", "ana@example.com")
	suite.login("ana@example.com")

	suite.wallet.FailNextWith(401, `{"error":"No autorizado"}`)
	_, err := suite.client.GetTransactions(suite.ctx)
	var expired *SessionExpiredError
	require.ErrorAs(suite.T(), err, &expired)

	// The side effect must be observable: without re-login a subsequent
	// fetch fails instead of serving stale cached data.
	assert.Nil(suite.T(), suite.client.CachedUser())
	_, err = suite.client.GetCurrentUser(suite.ctx)
	assert.ErrorAs(suite.T(), err, &expired)

	token, err := suite.client.tokens.GetToken()
	require.NoError(suite.T(), err)
	assert.Empty(suite.T(), token, "401 must clear the stored token")
}

func (suite *ClientTestSuite) TestGetTransactionsMapping() {
	suite.register("Ana", "Pérez", "ana@example.com")
	suite.register("Beto", "Gómez", "b@example.com")

	sender := suite.newClient()
	_, err := sender.Login(suite.ctx, "b@example.com", "secret123")
	require.NoError(suite.T(), err)
	_, err = sender.DepositMoney(suite.ctx, seededCVU, dec("100"))
	require.NoError(suite.T(), err)
	_, err = sender.Transfer(suite.ctx, dec("20"), "ana@example.com", "rent")
	require.NoError(suite.T(), err)

	// Sender side: a load and an outgoing transfer, backend order preserved.
	senderTxs, err := sender.GetTransactions(suite.ctx)
	require.NoError(suite.T(), err)
	require.Len(suite.T(), senderTxs, 2)
	assert.Equal(suite.T(), models.TxLoad, senderTxs[0].Type)
	assert.True(suite.T(), senderTxs[0].Amount.Equal(dec("100")),
		"load amount should be positive, got %s", senderTxs[0].Amount)
	assert.Equal(suite.T(), models.TxSend, senderTxs[1].Type)
	assert.True(suite.T(), senderTxs[1].Amount.Equal(dec("-20")),
		"outgoing amount should be negated, got %s", senderTxs[1].Amount)
	assert.Equal(suite.T(), "ana@example.com", senderTxs[1].RecipientEmail)

	// Recipient side: one incoming transfer, positive amount.
	suite.login("ana@example.com")
	txs, err := suite.client.GetTransactions(suite.ctx)
	require.NoError(suite.T(), err)
	require.Len(suite.T(), txs, 1)
	assert.Equal(suite.T(), models.TxReceive, txs[0].Type)
	assert.True(suite.T(), txs[0].Amount.Equal(dec("20")),
		"incoming amount should be positive, got %s", txs[0].Amount)
	assert.Equal(suite.T(), "b@example.com", txs[0].RecipientEmail)
	assert.Equal(suite.T(), models.StatusCompleted, txs[0].Status)
	assert.Equal(suite.T(), "rent", txs[0].Description)
}

func (suite *ClientTestSuite) TestTransferReturnsOutgoingRecord() {
	suite.register("Ana", "Pérez", "ana@example.com")
	suite.register("Beto", "Gómez", "b@example.com")
	suite.login("ana@example.com")

	_, err := suite.client.DepositMoney(suite.ctx, seededCVU, dec("1000"))
	require.NoError(suite.T(), err)

	tx, err := suite.client.Transfer(suite.ctx, dec("100"), "b@example.com", "rent")
	require.NoError(suite.T(), err)

	assert.True(suite.T(), tx.Amount.Equal(dec("-100")), "got %s", tx.Amount)
	assert.Equal(suite.T(), models.TxSend, tx.Type)
	assert.Equal(suite.T(), "b@example.com", tx.RecipientEmail)
	assert.Equal(suite.T(), models.StatusCompleted, tx.Status)
	assert.NotEmpty(suite.T(), tx.ID)

	// Best-effort refresh after the transfer keeps the cache current.
	cached := suite.client.CachedUser()
	require.NotNil(suite.T(), cached)
	assert.True(suite.T(), cached.Balance.Equal(dec("900")), "got %s", cached.Balance)
}

func (suite *ClientTestSuite) TestTransferInsufficientFunds() {
	suite.register("Ana", "Pérez", "ana@example.com")
	suite.register("Beto", "Gómez", "b@example.com")
	suite.login("ana@example.com")

	_, err := suite.client.Transfer(suite.ctx, dec("100"), "b@example.com", "rent")
	var rejected *BackendRejectedError
	require.ErrorAs(suite.T(), err, &rejected)
	assert.Equal(suite.T(), "Saldo insuficiente", rejected.Message)
}

func (suite *ClientTestSuite) TestTransferUnknownRecipient() {
	suite.register("Ana", "Pérez", "ana@example.com")
	suite.login("ana@example.com")

	_, err := suite.client.Transfer(suite.ctx, dec("10"), "nobody@example.com", "")
	var rejected *BackendRejectedError
	require.ErrorAs(suite.T(), err, &rejected)
	assert.Equal(suite.T(), "Usuario destinatario no encontrado", rejected.Message)
}

func (suite *ClientTestSuite) TestDepositSuccess() {
	suite.register("Ana", "Pérez", "ana@example.com")
	suite.login("ana@example.com")

	result, err := suite.client.DepositMoney(suite.ctx, seededCVU, dec("1000"))
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), "Carga realizada exitosamente", result.Message)
	assert.True(suite.T(), result.NewBalance.Equal(dec("1000")),
		"wallet-reported balance, got %s", result.NewBalance)

	bankBalance, ok := suite.bank.AccountBalance(seededCVU)
	require.True(suite.T(), ok)
	assert.True(suite.T(), bankBalance.Equal(dec("999000")),
		"external account must be debited, got %s", bankBalance)
}

func (suite *ClientTestSuite) TestDepositPhase1FailureLeavesWalletUntouched() {
	suite.register("Ana", "Pérez", "ana@example.com")
	suite.login("ana@example.com")

	_, err := suite.client.DepositMoney(suite.ctx, "9999999999999999999999", dec("1000"))
	var rejected *BackendRejectedError
	require.ErrorAs(suite.T(), err, &rejected)
	assert.Equal(suite.T(), "Cuenta bancaria no encontrada", rejected.Message)
	assert.False(suite.T(), rejected.Partial)

	user, err := suite.client.GetCurrentUser(suite.ctx)
	require.NoError(suite.T(), err)
	assert.True(suite.T(), user.Balance.IsZero(), "no wallet mutation may be attempted")

	txs, err := suite.client.GetTransactions(suite.ctx)
	require.NoError(suite.T(), err)
	assert.Empty(suite.T(), txs)
}

func (suite *ClientTestSuite) TestDepositPhase2FailureIsPartial() {
	suite.register("Ana", "Pérez", "ana@example.com")
	suite.login("ana@example.com")

	// Phase 1 hits the bank; the next wallet request (phase 2) blows up.
	suite.wallet.FailNextWith(500, `{"error":"deposit ledger unavailable"}`)
	_, err := suite.client.DepositMoney(suite.ctx, seededCVU, dec("1000"))

	var rejected *BackendRejectedError
	require.ErrorAs(suite.T(), err, &rejected)
	assert.Equal(suite.T(), "deposit ledger unavailable", rejected.Message)
	assert.True(suite.T(), rejected.Partial, "phase-2 failure after settlement is a partial failure")

	// The external debit is not rolled back; the wallet never saw the money.
	bankBalance, ok := suite.bank.AccountBalance(seededCVU)
	require.True(suite.T(), ok)
	assert.True(suite.T(), bankBalance.Equal(dec("999000")))

	user, err := suite.client.GetCurrentUser(suite.ctx)
	require.NoError(suite.T(), err)
	assert.True(suite.T(), user.Balance.IsZero())
}

func (suite *ClientTestSuite) TestWithdrawInsufficientLocalBalance() {
	suite.register("Ana", "Pérez", "ana@example.com")
	suite.login("ana@example.com")

	_, err := suite.client.WithdrawMoney(suite.ctx, seededCVU, dec("100"))
	var verr *ValidationError
	require.ErrorAs(suite.T(), err, &verr)
	assert.Equal(suite.T(), "Saldo insuficiente en tu cuenta", verr.Message)

	// Fails on the cached balance, before any settlement call.
	bankBalance, ok := suite.bank.AccountBalance(seededCVU)
	require.True(suite.T(), ok)
	assert.True(suite.T(), bankBalance.Equal(dec("1000000")), "bank must not be touched")
}

func (suite *ClientTestSuite) TestWithdrawSuccess() {
	suite.register("Ana", "Pérez", "ana@example.com")
	suite.login("ana@example.com")

	_, err := suite.client.DepositMoney(suite.ctx, seededCVU, dec("500"))
	require.NoError(suite.T(), err)

	result, err := suite.client.WithdrawMoney(suite.ctx, seededCVU, dec("200"))
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), "Retiro exitoso a Juan Pérez", result.Message)
	// 1_000_000 seeded − 500 deposited + 200 withdrawn.
	assert.True(suite.T(), result.NewBalance.Equal(dec("999700")), "got %s", result.NewBalance)

	user, err := suite.client.GetCurrentUser(suite.ctx)
	require.NoError(suite.T(), err)
	assert.True(suite.T(), user.Balance.Equal(dec("300")), "got %s", user.Balance)
}

func (suite *ClientTestSuite) TestWithdrawPhase2FailureIsPartial() {
	suite.register("Ana", "Pérez", "ana@example.com")
	suite.login("ana@example.com")

	_, err := suite.client.DepositMoney(suite.ctx, seededCVU, dec("500"))
	require.NoError(suite.T(), err)

	suite.wallet.FailNextWith(500, `{"error":"withdraw ledger unavailable"}`)
	_, err = suite.client.WithdrawMoney(suite.ctx, seededCVU, dec("200"))

	var rejected *BackendRejectedError
	require.ErrorAs(suite.T(), err, &rejected)
	assert.True(suite.T(), rejected.Partial)

	// External credit stands; wallet still holds the full deposit.
	bankBalance, ok := suite.bank.AccountBalance(seededCVU)
	require.True(suite.T(), ok)
	assert.True(suite.T(), bankBalance.Equal(dec("999700")))

	user, err := suite.client.GetCurrentUser(suite.ctx)
	require.NoError(suite.T(), err)
	assert.True(suite.T(), user.Balance.Equal(dec("500")))
}

func (suite *ClientTestSuite) TestMalformedSuccessBody() {
	suite.register("Ana", "Pérez", "ana@example.com")
	suite.login("ana@example.com")

	suite.wallet.FailNextWith(200, `{not json`)
	_, err := suite.client.GetCurrentUser(suite.ctx)

	var malformed *MalformedResponseError
	require.ErrorAs(suite.T(), err, &malformed)
	assert.Empty(suite.T(), malformed.UserMessage(),
		"malformed responses carry no user-facing text")
}

func (suite *ClientTestSuite) TestBackendErrorFallbackMessage() {
	suite.register("Ana", "Pérez", "ana@example.com")
	suite.login("ana@example.com")

	// Payload with neither error nor message falls back to the
	// operation-specific default.
	suite.wallet.FailNextWith(500, `{}`)
	_, err := suite.client.GetTransactions(suite.ctx)

	var rejected *BackendRejectedError
	require.ErrorAs(suite.T(), err, &rejected)
	assert.Equal(suite.T(), "Error al obtener transacciones", rejected.Message)
}

func (suite *ClientTestSuite) TestBackendErrorMessageField() {
	suite.register("Ana", "Pérez", "ana@example.com")
	suite.login("ana@example.com")

	suite.wallet.FailNextWith(500, `{"message":"mantenimiento programado"}`)
	_, err := suite.client.GetTransactions(suite.ctx)

	var rejected *BackendRejectedError
	require.ErrorAs(suite.T(), err, &rejected)
	assert.Equal(suite.T(), "mantenimiento programado", rejected.Message)
}

func (suite *ClientTestSuite) TestNetworkUnavailable() {
	dead := httptest.NewServer(nil)
	dead.Close()

	client := NewClient(Config{APIBaseURL: dead.URL + "/api", BankBaseURL: dead.URL})
	_, err := client.Login(suite.ctx, "ana@example.com", "secret123")

	var netErr *NetworkError
	require.ErrorAs(suite.T(), err, &netErr)
	assert.NotEmpty(suite.T(), netErr.UserMessage())
}

func (suite *ClientTestSuite) TestContactsLifecycle() {
	suite.register("Ana", "Pérez", "ana@example.com")
	beto, err := suite.client.Register(suite.ctx, "Beto", "Gómez", "b@example.com", "secret123")
	require.NoError(suite.T(), err)
	suite.login("ana@example.com")

	contacts, err := suite.client.ListContacts(suite.ctx)
	require.NoError(suite.T(), err)
	assert.Empty(suite.T(), contacts)

	contact, err := suite.client.AddContact(suite.ctx, "Beto", "Gómez", "b@example.com")
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), beto.ID, contact.ID, "contact id maps to the backend user id")
	assert.True(suite.T(), contact.IsFavorite)

	contacts, err = suite.client.ListContacts(suite.ctx)
	require.NoError(suite.T(), err)
	require.Len(suite.T(), contacts, 1)
	assert.Equal(suite.T(), "b@example.com", contacts[0].Email)

	require.NoError(suite.T(), suite.client.RemoveContact(suite.ctx, contact.ID))
	contacts, err = suite.client.ListContacts(suite.ctx)
	require.NoError(suite.T(), err)
	assert.Empty(suite.T(), contacts)
}

func TestClientSuite(t *testing.T) {
	suite.Run(t, new(ClientTestSuite))
}

func TestMapTransactionDirectionContract(t *testing.T) {
	client := NewClient(Config{})

	tests := []struct {
		name       string
		wireType   string
		wantType   models.TransactionType
		wantAmount string
	}{
		{"incoming maps to receive, positive", "incoming", models.TxReceive, "50"},
		{"outgoing maps to send, negative", "outgoing", models.TxSend, "-50"},
		{"load maps to load, positive", "load", models.TxLoad, "50"},
		{"debin maps to debin, positive", "debin", models.TxDebin, "50"},
		{"unknown treated as outgoing", "mystery", models.TxSend, "-50"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := client.mapTransaction(backendTransaction{
				ID:     json.Number("7"),
				Amount: dec("50.00"),
				Type:   tt.wireType,
				Status: "completed",
				Date:   time.Now(),
			})
			assert.Equal(t, tt.wantType, tx.Type)
			assert.True(t, tx.Amount.Equal(dec(tt.wantAmount)),
				"expected %s, got %s", tt.wantAmount, tx.Amount)
			assert.Equal(t, "7", tx.ID)
			assert.Equal(t, "Sin descripción", tx.Description)
		})
	}
}
