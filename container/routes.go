package container

import (
	"net/http"

	"github.com/swaggo/swag"

	_ "orchestrator-backend/docs"
	"orchestrator-backend/middleware"
)

// Routes registers every endpoint and wraps the mux in the middleware chain.
func (c *Container) Routes() http.Handler {
	mux := http.NewServeMux()
	handle := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, middleware.Instrument(c.Metrics, pattern, h))
	}

	// Health endpoints
	handle("GET /api/health", c.HealthHandler.HandleHealth)

	// Bounty endpoints
	handle("GET /api/bounties", c.BountyHandler.HandleListBounties)
	handle("POST /api/bounties", c.BountyHandler.HandleCreateBounty)
	handle("GET /api/bounties/{id}", c.BountyHandler.HandleGetBounty)
	handle("PUT /api/bounties/{id}", c.BountyHandler.HandleUpdateBounty)
	handle("POST /api/bounties/{id}/lock", c.BountyHandler.HandleLockBounty)

	// Claim endpoints
	handle("GET /api/claims", c.BountyHandler.HandleListClaims)
	handle("POST /api/claims", c.BountyHandler.HandleCreateClaim)
	handle("GET /api/claims/{id}", c.BountyHandler.HandleGetClaim)
	handle("PUT /api/claims/{id}", c.BountyHandler.HandleUpdateClaim)
	handle("POST /api/claims/{id}/verify", c.BountyHandler.HandleVerifyClaim)

	// Milestone endpoints
	handle("GET /api/milestones", c.MilestoneHandler.HandleListMilestones)
	handle("POST /api/milestones", c.MilestoneHandler.HandleCreateMilestone)
	handle("POST /api/milestones/start-next", c.MilestoneHandler.HandleStartNext)
	handle("PUT /api/milestones/timelock", c.MilestoneHandler.HandleSetTimelock)
	handle("GET /api/milestones/{id}", c.MilestoneHandler.HandleGetMilestone)
	handle("PUT /api/milestones/{id}", c.MilestoneHandler.HandleUpdateMilestone)
	handle("DELETE /api/milestones/{id}", c.MilestoneHandler.HandleDeleteMilestone)
	handle("POST /api/milestones/{id}/submit", c.MilestoneHandler.HandleSubmit)
	handle("POST /api/milestones/{id}/complete", c.MilestoneHandler.HandleComplete)
	handle("POST /api/milestones/{id}/decline", c.MilestoneHandler.HandleDecline)

	// Payment endpoints
	handle("GET /api/payments/{client}", c.PaymentHandler.HandleGetClient)
	handle("GET /api/payments/{client}/{contributor}", c.PaymentHandler.HandleGetPayments)
	handle("DELETE /api/payments/{client}/{contributor}", c.PaymentHandler.HandleRemovePayments)
	handle("POST /api/payments/{client}/claim", c.PaymentHandler.HandleClaimAll)
	handle("POST /api/payments/{client}/claim/{walletId}", c.PaymentHandler.HandleClaimWallet)
	handle("POST /api/payments/{client}/unclaimable", c.PaymentHandler.HandleClaimUnclaimable)

	// Funding and role endpoints
	handle("GET /api/funding", c.PaymentHandler.HandleGetFunding)
	handle("POST /api/funding/deposit", c.PaymentHandler.HandleDeposit)
	handle("POST /api/funding/withdraw", c.PaymentHandler.HandleWithdraw)
	handle("GET /api/balances/{address}", c.PaymentHandler.HandleBalance)
	handle("POST /api/roles", c.PaymentHandler.HandleGrantRole)
	handle("POST /api/roles/revoke", c.PaymentHandler.HandleRevokeRole)

	// Event log
	handle("GET /api/events", c.PaymentHandler.HandleListEvents)
	handle("GET /api/events/stream", c.PaymentHandler.HandleStreamEvents)

	// QR code endpoints
	handle("GET /api/qrcode", c.QRCodeHandler.HandleGenerateQRCode)

	// API keys
	handle("POST /api/auth/keys", c.APIKeyHandler.HandleIssue)
	handle("POST /api/auth/login", c.APIKeyHandler.HandleLogin)
	handle("GET /api/auth/me", c.APIKeyHandler.HandleWhoAmI)

	// Operations
	mux.Handle("GET /metrics", c.Metrics.Handler())
	mux.HandleFunc("GET /swagger/doc.json", func(w http.ResponseWriter, r *http.Request) {
		doc, err := swag.ReadDoc()
		if err != nil {
			http.Error(w, "swagger descriptor unavailable", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(doc))
	})

	httpCfg := c.Config.HTTP
	return middleware.Chain(mux,
		middleware.Recovery,
		middleware.RequestID,
		middleware.Logging,
		middleware.CORS(httpCfg.AllowedOrigins),
		middleware.SecurityHeaders,
		middleware.RateLimit(httpCfg.RateLimit, httpCfg.RateWindow),
		middleware.Timeout(httpCfg.RequestTimeout, "/api/events/stream"),
		middleware.ContentType,
		middleware.APIAuth(c.APIKeys, "/api/auth/login"),
	)
}
