// Package docs holds the OpenAPI description served at /swagger. Regenerate with
// `swag init -g cmd/api/main.go` after changing handler annotations.
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
            "get": {"tags": ["System"], "summary": "Health check", "produces": ["application/json"],
                "responses": {"200": {"description": "OK"}}}
        },
        "/api/v1/orders": {
            "post": {"tags": ["Order"], "summary": "Create Order", "consumes": ["application/json"], "produces": ["application/json"],
                "parameters": [{"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/order.CreateOrderRequest"}}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.Envelope"}}}}
        },
        "/api/v1/orders/{id}": {
            "get": {"tags": ["Order"], "summary": "Get Order", "produces": ["application/json"],
                "parameters": [{"in": "path", "name": "id", "type": "string", "required": true}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.Envelope"}}}}
        },
        "/api/v1/orders/{id}/bind_payment": {
            "post": {"tags": ["Order"], "summary": "Bind Payment", "consumes": ["application/json"], "produces": ["application/json"],
                "parameters": [
                    {"in": "path", "name": "id", "type": "string", "required": true},
                    {"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/handlers.BindPaymentRequest"}}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.Envelope"}}}}
        },
        "/api/v1/orders/{id}/transactions": {
            "get": {"tags": ["Order"], "summary": "List Order Transactions", "produces": ["application/json"],
                "parameters": [
                    {"in": "path", "name": "id", "type": "string", "required": true},
                    {"in": "query", "name": "from", "type": "integer"},
                    {"in": "query", "name": "size", "type": "integer"},
                    {"in": "query", "name": "sort_by", "type": "string"},
                    {"in": "query", "name": "sort_order", "type": "string"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.Envelope"}}}}
        },
        "/api/v1/payment/mpesa/stk_push": {
            "post": {"tags": ["Payment"], "summary": "Initiate M-PESA STK Push", "consumes": ["application/json"], "produces": ["application/json"],
                "parameters": [{"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/payment.InitiateRequest"}}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.Envelope"}}}}
        },
        "/api/v1/payment/pesapal/checkout": {
            "post": {"tags": ["Payment"], "summary": "Initiate Pesapal Checkout", "consumes": ["application/json"], "produces": ["application/json"],
                "parameters": [{"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/payment.InitiateRequest"}}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.Envelope"}}}}
        },
        "/api/v1/payment/transactions/{id}": {
            "get": {"tags": ["Payment"], "summary": "Get Transaction", "produces": ["application/json"],
                "parameters": [{"in": "path", "name": "id", "type": "string", "required": true}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.Envelope"}}}}
        },
        "/api/v1/payment/temp_ref": {
            "post": {"tags": ["Payment"], "summary": "Issue Temporary Order Reference", "produces": ["application/json"],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.Envelope"}}}}
        },
        "/api/v1/payment/webhook/mpesa": {
            "post": {"tags": ["Webhook"], "summary": "M-PESA STK Callback", "consumes": ["application/json"], "produces": ["application/json"],
                "parameters": [{"in": "query", "name": "token", "type": "string"}],
                "responses": {"200": {"description": "OK"}}}
        },
        "/api/v1/payment/webhook/pesapal": {
            "get": {"tags": ["Webhook"], "summary": "Pesapal IPN", "produces": ["application/json"],
                "parameters": [
                    {"in": "query", "name": "OrderTrackingId", "type": "string"},
                    {"in": "query", "name": "OrderMerchantReference", "type": "string"},
                    {"in": "query", "name": "OrderNotificationType", "type": "string"}
                ],
                "responses": {"200": {"description": "OK"}}},
            "post": {"tags": ["Webhook"], "summary": "Pesapal IPN", "consumes": ["application/json"], "produces": ["application/json"],
                "responses": {"200": {"description": "OK"}}}
        },
        "/api/v1/admin/list_transactions": {
            "post": {"tags": ["Admin"], "summary": "List Transactions (Admin)", "consumes": ["application/json"], "produces": ["application/json"],
                "parameters": [{"in": "body", "name": "request", "required": true, "schema": {"type": "object"}}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.Envelope"}}}}
        },
        "/api/v1/admin/override_transaction_status": {
            "post": {"tags": ["Admin"], "summary": "Override Transaction Status (Admin)", "consumes": ["application/json"], "produces": ["application/json"],
                "parameters": [{"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/reconcile.OverrideRequest"}}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.Envelope"}}}}
        },
        "/api/v1/admin/reconcile": {
            "post": {"tags": ["Admin"], "summary": "Run Reconciliation (Admin)", "produces": ["application/json"],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.Envelope"}}}}
        },
        "/api/v1/admin/repair_statuses": {
            "post": {"tags": ["Admin"], "summary": "Repair Stored Statuses (Admin)", "produces": ["application/json"],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.Envelope"}}}}
        },
        "/api/v1/admin/archive_order": {
            "post": {"tags": ["Admin"], "summary": "Archive Order (Admin)", "consumes": ["application/json"], "produces": ["application/json"],
                "parameters": [{"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/handlers.ArchiveOrderRequest"}}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.Envelope"}}}}
        },
        "/api/v1/admin/get_payment_statistic": {
            "post": {"tags": ["Admin"], "summary": "Get Payment Statistics (Admin)", "consumes": ["application/json"], "produces": ["application/json"],
                "parameters": [{"in": "body", "name": "request", "required": true, "schema": {"type": "object"}}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.Envelope"}}}}
        }
    },
    "definitions": {
        "handlers.Envelope": {
            "type": "object",
            "properties": {"code": {"type": "integer"}, "message": {"type": "string"}, "data": {}}
        },
        "handlers.BindPaymentRequest": {
            "type": "object", "required": ["temp_order_ref"],
            "properties": {"temp_order_ref": {"type": "string"}}
        },
        "handlers.ArchiveOrderRequest": {
            "type": "object", "required": ["order_id"],
            "properties": {"order_id": {"type": "string"}}
        },
        "order.CreateOrderRequest": {
            "type": "object",
            "properties": {"customer_phone": {"type": "string"}, "total_amount": {"type": "number"}, "currency": {"type": "string"}}
        },
        "payment.InitiateRequest": {
            "type": "object",
            "properties": {
                "order_id": {"type": "string"},
                "temp_order_ref": {"type": "string"},
                "phone": {"type": "string"},
                "amount": {"type": "string"},
                "description": {"type": "string"},
                "email": {"type": "string"},
                "first_name": {"type": "string"},
                "last_name": {"type": "string"}
            }
        },
        "reconcile.OverrideRequest": {
            "type": "object", "required": ["transaction_id", "status", "operator", "reason"],
            "properties": {"transaction_id": {"type": "string"}, "status": {"type": "string"}, "operator": {"type": "string"}, "reason": {"type": "string"}}
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8888",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Storepay API",
	Description:      "M-PESA and Pesapal checkout for the store.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
