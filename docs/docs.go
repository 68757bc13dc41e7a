// Package docs registers the OpenAPI document served under /swagger.
// Regenerate with `swag init -g cmd/api/main.go`.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/healthz": {
            "get": {"tags": ["System"], "summary": "Health check", "produces": ["application/json"], "responses": {"200": {"description": "OK"}}}
        },
        "/api/v1/plans": {
            "get": {"tags": ["System"], "summary": "List Plans", "produces": ["application/json"], "responses": {"200": {"description": "OK"}}}
        },
        "/api/v1/credits/balance": {
            "get": {
                "tags": ["Credits"], "summary": "Get Credit Balance", "produces": ["application/json"],
                "parameters": [{"type": "string", "name": "user_id", "in": "query", "required": true}],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/api/v1/credits/check": {
            "get": {
                "tags": ["Credits"], "summary": "Check Credits", "produces": ["application/json"],
                "parameters": [
                    {"type": "string", "name": "user_id", "in": "query", "required": true},
                    {"type": "integer", "name": "n", "in": "query"}
                ],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/api/v1/credits/use": {
            "post": {
                "tags": ["Credits"], "summary": "Use Credit", "consumes": ["application/json"], "produces": ["application/json"],
                "parameters": [{"name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.UseCreditRequest"}}],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/api/v1/credits/history": {
            "get": {
                "tags": ["Credits"], "summary": "Billing History", "produces": ["application/json"],
                "parameters": [
                    {"type": "string", "name": "user_id", "in": "query", "required": true},
                    {"type": "integer", "name": "limit", "in": "query"}
                ],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/api/v1/credits/usage": {
            "get": {
                "tags": ["Credits"], "summary": "Period Usage", "produces": ["application/json"],
                "parameters": [{"type": "string", "name": "user_id", "in": "query", "required": true}],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/api/v1/credits/list": {
            "get": {
                "tags": ["Credits"], "summary": "List User Credits", "produces": ["application/json"],
                "parameters": [
                    {"type": "string", "name": "user_id", "in": "query", "required": true},
                    {"type": "string", "name": "status", "in": "query"},
                    {"type": "integer", "name": "from", "in": "query"},
                    {"type": "integer", "name": "size", "in": "query"},
                    {"type": "string", "name": "sort_by", "in": "query"},
                    {"type": "string", "name": "sort_order", "in": "query"}
                ],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/api/v1/referral/redeem": {
            "post": {
                "tags": ["Referral"], "summary": "Redeem Referral Code", "consumes": ["application/json"], "produces": ["application/json"],
                "parameters": [{"name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.RedeemReferralRequest"}}],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/api/v1/referral/code": {
            "get": {
                "tags": ["Referral"], "summary": "Get Referral Code", "produces": ["application/json"],
                "parameters": [{"type": "string", "name": "user_id", "in": "query", "required": true}],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/api/v1/referral/stats": {
            "get": {
                "tags": ["Referral"], "summary": "Referral Stats", "produces": ["application/json"],
                "parameters": [{"type": "string", "name": "user_id", "in": "query", "required": true}],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/api/v1/webhook/payment": {
            "post": {
                "tags": ["Webhook"], "summary": "Payment Webhook", "consumes": ["application/json"], "produces": ["application/json"],
                "parameters": [{"name": "request", "in": "body", "required": true, "schema": {"type": "object"}}],
                "responses": {"200": {"description": "OK"}, "400": {"description": "Bad Request"}, "404": {"description": "Not Found"}, "500": {"description": "Internal Server Error"}}
            }
        },
        "/api/v1/admin/list_credits": {
            "post": {"tags": ["Admin"], "summary": "List Credits (Admin)", "consumes": ["application/json"], "produces": ["application/json"],
                "parameters": [{"name": "request", "in": "body", "required": true, "schema": {"type": "object"}}],
                "responses": {"200": {"description": "OK"}}}
        },
        "/api/v1/admin/get_credit_statistic": {
            "post": {"tags": ["Admin"], "summary": "Get Credit Statistics (Admin)", "consumes": ["application/json"], "produces": ["application/json"],
                "parameters": [{"name": "request", "in": "body", "required": true, "schema": {"type": "object"}}],
                "responses": {"200": {"description": "OK"}}}
        },
        "/api/v1/admin/grant_purchase_credit": {
            "post": {"tags": ["Admin"], "summary": "Grant Purchase Credit (Admin)", "consumes": ["application/json"], "produces": ["application/json"],
                "parameters": [{"name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.GrantPurchaseCreditRequest"}}],
                "responses": {"200": {"description": "OK"}}}
        },
        "/api/v1/admin/expire_credits": {
            "post": {"tags": ["Admin"], "summary": "Expire Credits (Admin)", "produces": ["application/json"], "responses": {"200": {"description": "OK"}}}
        }
    },
    "definitions": {
        "handlers.UseCreditRequest": {
            "type": "object",
            "required": ["feature_type", "user_id"],
            "properties": {
                "feature_id": {"type": "string"},
                "feature_type": {"type": "string", "enum": ["blog_post", "email_campaign", "social_post", "website_analysis"]},
                "user_id": {"type": "string"}
            }
        },
        "handlers.RedeemReferralRequest": {
            "type": "object",
            "required": ["code", "user_id"],
            "properties": {"code": {"type": "string"}, "user_id": {"type": "string"}}
        },
        "handlers.GrantPurchaseCreditRequest": {
            "type": "object",
            "required": ["operator_id", "user_id"],
            "properties": {
                "charge_id": {"type": "string"},
                "description": {"type": "string"},
                "operator_id": {"type": "string"},
                "user_id": {"type": "string"},
                "value_usd": {"type": "number"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8888",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Credit Ledger API",
	Description:      "Credit ledger for subscription, purchase and referral credits.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
