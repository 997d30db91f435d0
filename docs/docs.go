// Package docs registers the orchestrator API descriptor with swag so it can
// be served at /swagger/doc.json. Keep the paths in sync with the @Router
// annotations in handlers.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "securityDefinitions": {
        "ApiKeyAuth": {"type": "apiKey", "in": "header", "name": "X-API-Key"}
    },
    "paths": {
        "/api/health": {"get": {"tags": ["Health"], "summary": "Health check"}},
        "/api/bounties": {
            "get": {"tags": ["Bounties"], "summary": "List bounties"},
            "post": {"tags": ["Bounties"], "summary": "Create bounty", "security": [{"ApiKeyAuth": []}],
                "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/models.BountyRequest"}}]}
        },
        "/api/bounties/{id}": {
            "get": {"tags": ["Bounties"], "summary": "Get bounty", "parameters": [{"$ref": "#/parameters/id"}]},
            "put": {"tags": ["Bounties"], "summary": "Update bounty", "security": [{"ApiKeyAuth": []}],
                "parameters": [{"$ref": "#/parameters/id"}, {"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/models.BountyRequest"}}]}
        },
        "/api/bounties/{id}/lock": {"post": {"tags": ["Bounties"], "summary": "Lock bounty", "security": [{"ApiKeyAuth": []}], "parameters": [{"$ref": "#/parameters/id"}]}},
        "/api/claims": {
            "get": {"tags": ["Claims"], "summary": "List claims",
                "parameters": [{"in": "query", "name": "contributor", "type": "string"}, {"in": "query", "name": "bounty", "type": "integer"}]},
            "post": {"tags": ["Claims"], "summary": "Create claim", "security": [{"ApiKeyAuth": []}],
                "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/models.ClaimRequest"}}]}
        },
        "/api/claims/{id}": {
            "get": {"tags": ["Claims"], "summary": "Get claim", "parameters": [{"$ref": "#/parameters/id"}]},
            "put": {"tags": ["Claims"], "summary": "Update claim", "security": [{"ApiKeyAuth": []}],
                "parameters": [{"$ref": "#/parameters/id"}, {"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/models.ClaimRequest"}}]}
        },
        "/api/claims/{id}/verify": {"post": {"tags": ["Claims"], "summary": "Verify claim", "security": [{"ApiKeyAuth": []}],
            "parameters": [{"$ref": "#/parameters/id"}, {"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/models.VerifyClaimRequest"}}]}},
        "/api/milestones": {
            "get": {"tags": ["Milestones"], "summary": "List milestones"},
            "post": {"tags": ["Milestones"], "summary": "Create milestone", "security": [{"ApiKeyAuth": []}],
                "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/models.MilestoneRequest"}}]}
        },
        "/api/milestones/start-next": {"post": {"tags": ["Milestones"], "summary": "Start next milestone", "security": [{"ApiKeyAuth": []}]}},
        "/api/milestones/timelock": {"put": {"tags": ["Milestones"], "summary": "Set milestone update timelock", "security": [{"ApiKeyAuth": []}]}},
        "/api/milestones/{id}": {
            "get": {"tags": ["Milestones"], "summary": "Get milestone", "parameters": [{"$ref": "#/parameters/id"}]},
            "put": {"tags": ["Milestones"], "summary": "Update milestone", "security": [{"ApiKeyAuth": []}], "parameters": [{"$ref": "#/parameters/id"}]},
            "delete": {"tags": ["Milestones"], "summary": "Remove milestone", "security": [{"ApiKeyAuth": []}], "parameters": [{"$ref": "#/parameters/id"}]}
        },
        "/api/milestones/{id}/submit": {"post": {"tags": ["Milestones"], "summary": "Submit milestone", "security": [{"ApiKeyAuth": []}], "parameters": [{"$ref": "#/parameters/id"}]}},
        "/api/milestones/{id}/complete": {"post": {"tags": ["Milestones"], "summary": "Complete milestone", "security": [{"ApiKeyAuth": []}], "parameters": [{"$ref": "#/parameters/id"}]}},
        "/api/milestones/{id}/decline": {"post": {"tags": ["Milestones"], "summary": "Decline milestone", "security": [{"ApiKeyAuth": []}], "parameters": [{"$ref": "#/parameters/id"}]}},
        "/api/payments/{client}": {"get": {"tags": ["Payments"], "summary": "Payment client state", "parameters": [{"$ref": "#/parameters/client"}]}},
        "/api/payments/{client}/{contributor}": {
            "get": {"tags": ["Payments"], "summary": "Contributor payments", "parameters": [{"$ref": "#/parameters/client"}, {"$ref": "#/parameters/contributor"}]},
            "delete": {"tags": ["Payments"], "summary": "Remove payments", "security": [{"ApiKeyAuth": []}], "parameters": [{"$ref": "#/parameters/client"}, {"$ref": "#/parameters/contributor"}]}
        },
        "/api/payments/{client}/claim": {"post": {"tags": ["Payments"], "summary": "Claim all vested payments", "security": [{"ApiKeyAuth": []}], "parameters": [{"$ref": "#/parameters/client"}]}},
        "/api/payments/{client}/claim/{walletId}": {"post": {"tags": ["Payments"], "summary": "Claim one wallet", "security": [{"ApiKeyAuth": []}],
            "parameters": [{"$ref": "#/parameters/client"}, {"in": "path", "name": "walletId", "required": true, "type": "integer"}, {"in": "query", "name": "retry", "type": "boolean"}]}},
        "/api/payments/{client}/unclaimable": {"post": {"tags": ["Payments"], "summary": "Claim previously unclaimable amounts", "security": [{"ApiKeyAuth": []}], "parameters": [{"$ref": "#/parameters/client"}]}},
        "/api/funding": {"get": {"tags": ["Funding"], "summary": "Funding state"}},
        "/api/funding/deposit": {"post": {"tags": ["Funding"], "summary": "Deposit", "security": [{"ApiKeyAuth": []}]}},
        "/api/funding/withdraw": {"post": {"tags": ["Funding"], "summary": "Withdraw", "security": [{"ApiKeyAuth": []}]}},
        "/api/balances/{address}": {"get": {"tags": ["Funding"], "summary": "Token balance", "parameters": [{"in": "path", "name": "address", "required": true, "type": "string"}]}},
        "/api/roles": {"post": {"tags": ["Roles"], "summary": "Grant role", "security": [{"ApiKeyAuth": []}]}},
        "/api/roles/revoke": {"post": {"tags": ["Roles"], "summary": "Revoke role", "security": [{"ApiKeyAuth": []}]}},
        "/api/events": {"get": {"tags": ["Events"], "summary": "Event log",
            "parameters": [{"in": "query", "name": "type", "type": "string"}, {"in": "query", "name": "module", "type": "string"},
                {"in": "query", "name": "entity", "type": "integer"}, {"in": "query", "name": "address", "type": "string"}, {"in": "query", "name": "limit", "type": "integer"}]}},
        "/api/events/stream": {"get": {"tags": ["Events"], "summary": "Live event stream", "produces": ["text/event-stream"],
            "parameters": [{"in": "query", "name": "type", "type": "string"}]}},
        "/api/qrcode": {"get": {"tags": ["Payments"], "summary": "Claim link QR code", "produces": ["image/png"],
            "parameters": [{"in": "query", "name": "client", "required": true, "type": "string"}, {"in": "query", "name": "contributor", "required": true, "type": "string"}]}},
        "/api/auth/keys": {"post": {"tags": ["Auth"], "summary": "Issue API key", "security": [{"ApiKeyAuth": []}]}},
        "/api/auth/login": {"post": {"tags": ["Auth"], "summary": "Check API key"}},
        "/api/auth/me": {"get": {"tags": ["Auth"], "summary": "Current caller", "security": [{"ApiKeyAuth": []}]}}
    },
    "parameters": {
        "id": {"in": "path", "name": "id", "required": true, "type": "integer"},
        "client": {"in": "path", "name": "client", "required": true, "type": "string", "description": "bounty, milestone or a client address"},
        "contributor": {"in": "path", "name": "contributor", "required": true, "type": "string"}
    },
    "definitions": {
        "models.BountyRequest": {"type": "object", "properties": {
            "minimum_payout_amount": {"type": "integer"}, "maximum_payout_amount": {"type": "integer"}, "details": {"type": "string"}}},
        "models.ClaimContributor": {"type": "object", "properties": {"address": {"type": "string"}, "claim_amount": {"type": "integer"}}},
        "models.ClaimRequest": {"type": "object", "properties": {
            "bounty_id": {"type": "integer"}, "details": {"type": "string"},
            "contributors": {"type": "array", "items": {"$ref": "#/definitions/models.ClaimContributor"}}}},
        "models.VerifyClaimRequest": {"type": "object", "properties": {"bounty_id": {"type": "integer"}}},
        "models.MilestoneContributor": {"type": "object", "properties": {"address": {"type": "string"}, "salary": {"type": "integer"}, "data": {"type": "string"}}},
        "models.MilestoneRequest": {"type": "object", "properties": {
            "title": {"type": "string"}, "details": {"type": "string"}, "duration": {"type": "integer"}, "budget": {"type": "integer"},
            "contributors": {"type": "array", "items": {"$ref": "#/definitions/models.MilestoneContributor"}}}}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Orchestrator API",
	Description:      "Bounties, milestones and streaming payments of a workflow deployment.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
