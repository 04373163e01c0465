package walletapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type settlementRequest struct {
	CVU    string          `json:"cvu"`
	Amount decimal.Decimal `json:"amount"`
}

// settlementResponse is the fake-bank response envelope.
type settlementResponse struct {
	Data struct {
		Nombre     string          `json:"nombre"`
		NewBalance decimal.Decimal `json:"newBalance"`
	} `json:"data"`
}

type fundingRequest struct {
	CVU         string          `json:"cvu"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
}

// DepositResult reports a completed load from an external bank account.
type DepositResult struct {
	Message    string
	NewBalance decimal.Decimal
}

// WithdrawResult reports a completed withdrawal to an external bank account.
// NewBalance is the external account's balance as reported by the settlement
// service.
type WithdrawResult struct {
	Message    string
	NewBalance decimal.Decimal
}

// markPartial flags a backend rejection that happened after the settlement
// phase already succeeded. The two ledgers disagree until reconciled by hand;
// the settlement API exposes no reversal endpoint, so no compensation is
// attempted.
func (c *Client) markPartial(op, cvu string, amount decimal.Decimal, err error) error {
	c.log.Error("wallet mutation failed after settlement succeeded, manual reconciliation required",
		zap.String("op", op),
		zap.String("cvu", cvu),
		zap.String("amount", amount.String()),
		zap.Error(err))
	var rejected *BackendRejectedError
	if errors.As(err, &rejected) {
		rejected.Partial = true
	}
	return err
}

// DepositMoney loads money into the wallet from the external bank account
// identified by cvu. Two phases, strictly sequential: the settlement service
// debits the external account first, then the wallet backend credits the
// user. A phase-1 failure leaves the wallet untouched; a phase-2 failure is
// not rolled back externally.
func (c *Client) DepositMoney(ctx context.Context, cvu string, amount decimal.Decimal) (*DepositResult, error) {
	if err := ValidateCVU(cvu); err != nil {
		return nil, err
	}
	if err := ValidateAmount(amount); err != nil {
		return nil, err
	}

	var bank settlementResponse
	err := c.doJSON(ctx, "depositMoney", http.MethodPost, c.bankBase+"/deposit", false,
		settlementRequest{CVU: cvu, Amount: amount}, &bank, "Error en el servicio bancario")
	if err != nil {
		return nil, err
	}

	var ignored json.RawMessage
	err = c.doJSON(ctx, "depositMoney", http.MethodPost, c.apiBase+"/transactions/deposit", true,
		fundingRequest{CVU: cvu, Amount: amount, Description: "Carga desde cuenta bancaria " + cvu},
		&ignored, "Error al procesar la carga en la wallet")
	if err != nil {
		return nil, c.markPartial("depositMoney", cvu, amount, err)
	}

	// The wallet ledger is authoritative for the new balance; fall back to
	// the settlement-reported figure when the refresh fails.
	newBalance := bank.Data.NewBalance
	if user, err := c.GetCurrentUser(ctx); err != nil {
		c.log.Warn("refreshing user after deposit failed", zap.Error(err))
	} else {
		newBalance = user.Balance
	}

	return &DepositResult{
		Message:    "Carga realizada exitosamente",
		NewBalance: newBalance,
	}, nil
}

// WithdrawMoney moves money from the wallet to the external bank account
// identified by cvu. The cached balance is checked before any network call;
// then the settlement service credits the external account and the wallet
// backend debits the user, strictly in that order. A phase-2 failure is not
// rolled back externally.
func (c *Client) WithdrawMoney(ctx context.Context, cvu string, amount decimal.Decimal) (*WithdrawResult, error) {
	if err := ValidateCVU(cvu); err != nil {
		return nil, err
	}
	if err := ValidateAmount(amount); err != nil {
		return nil, err
	}

	user := c.CachedUser()
	if user == nil {
		var err error
		user, err = c.GetCurrentUser(ctx)
		if err != nil {
			return nil, err
		}
	}
	if user.Balance.LessThan(amount) {
		return nil, &ValidationError{Field: "amount", Message: "Saldo insuficiente en tu cuenta"}
	}

	var bank settlementResponse
	err := c.doJSON(ctx, "withdrawMoney", http.MethodPost, c.bankBase+"/withdraw", false,
		settlementRequest{CVU: cvu, Amount: amount}, &bank, "Error en el retiro bancario")
	if err != nil {
		return nil, err
	}

	var ignored json.RawMessage
	err = c.doJSON(ctx, "withdrawMoney", http.MethodPost, c.apiBase+"/transactions/withdraw", true,
		fundingRequest{CVU: cvu, Amount: amount, Description: "Retiro a cuenta bancaria " + cvu},
		&ignored, "Error al procesar el retiro")
	if err != nil {
		return nil, c.markPartial("withdrawMoney", cvu, amount, err)
	}

	if _, err := c.GetCurrentUser(ctx); err != nil {
		c.log.Warn("refreshing user after withdrawal failed", zap.Error(err))
	}

	return &WithdrawResult{
		Message:    "Retiro exitoso a " + bank.Data.Nombre,
		NewBalance: bank.Data.NewBalance,
	}, nil
}
