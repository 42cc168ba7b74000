package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/aq2208/gorder-inventory/internal/logging"
	"github.com/aq2208/gorder-inventory/internal/usecase"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// ValidationItem mirrors one entry of a 422 body: where, what, which rule.
type ValidationItem struct {
	Loc  []string `json:"loc"`
	Msg  string   `json:"msg"`
	Type string   `json:"type"`
}

type errorRule struct {
	target error
	status int
	detail string
}

// errorRules is checked in order; the first match wins.
var errorRules = []errorRule{
	{usecase.ErrProductNotFound, http.StatusNotFound, "Product not found"},
	{usecase.ErrOrderNotFound, http.StatusNotFound, "Order not found"},
	{usecase.ErrDuplicateSku, http.StatusConflict, "SKU already exists"},
	{usecase.ErrInsufficientStock, http.StatusConflict, "Insufficient stock"},
	{usecase.ErrDeletionNotAllowed, http.StatusConflict, "Only PENDING orders can be deleted; consider status=CANCELED"},
	{usecase.ErrDuplicateRequest, http.StatusConflict, "Request with this idempotency key is already in progress"},
	{usecase.ErrConcurrentUpdate, http.StatusConflict, "Order was modified concurrently; retry"},
	{usecase.ErrIntegrity, http.StatusConflict, "Conflict: integrity constraint violated"},
	{usecase.ErrMissingSignature, http.StatusBadRequest, "Missing signature headers"},
	{usecase.ErrBadTimestamp, http.StatusBadRequest, "Bad timestamp header"},
	{usecase.ErrStaleWebhook, http.StatusBadRequest, "Stale webhook"},
	{usecase.ErrMalformedPayload, http.StatusBadRequest, "Malformed payload"},
	{usecase.ErrUnsupportedEvent, http.StatusBadRequest, "Unsupported event type"},
	{usecase.ErrInvalidSignature, http.StatusUnauthorized, "Invalid signature"},
	{context.DeadlineExceeded, http.StatusGatewayTimeout, "Request timed out"},
}

// writeError maps a usecase error onto the response. Unknown errors are logged
// and reported as a bare 500.
func writeError(c *gin.Context, err error) {
	var fe *usecase.FieldError
	if errors.As(err, &fe) {
		writeValidation(c, ValidationItem{
			Loc:  []string{fieldLocation(fe.Field), fe.Field},
			Msg:  fe.Err.Error(),
			Type: "value_error",
		})
		return
	}
	var te *usecase.TransitionError
	if errors.As(err, &te) {
		c.JSON(http.StatusConflict, gin.H{"detail": fmt.Sprintf("Invalid status transition: %s -> %s", te.From, te.To)})
		return
	}
	for _, r := range errorRules {
		if errors.Is(err, r.target) {
			c.JSON(r.status, gin.H{"detail": r.detail})
			return
		}
	}

	_ = c.Error(err)
	logging.From(c).Error("unhandled error", "err", err)
	c.JSON(http.StatusInternalServerError, gin.H{"detail": "Internal server error"})
}

func writeValidation(c *gin.Context, items ...ValidationItem) {
	c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": "Validation error", "errors": items})
}

func fieldLocation(field string) string {
	switch field {
	case "limit", "offset":
		return "query"
	case "id":
		return "path"
	default:
		return "body"
	}
}

// writeBindError turns a ShouldBindJSON failure into the 422 shape.
func writeBindError(c *gin.Context, err error) {
	var (
		verrs   validator.ValidationErrors
		typeErr *json.UnmarshalTypeError
		synErr  *json.SyntaxError
		tooBig  *http.MaxBytesError
	)
	switch {
	case errors.As(err, &tooBig):
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"detail": "Payload too large"})
	case errors.As(err, &verrs):
		items := make([]ValidationItem, 0, len(verrs))
		for _, fe := range verrs {
			items = append(items, validationItem(fe))
		}
		writeValidation(c, items...)
	case errors.As(err, &typeErr):
		item := ValidationItem{Loc: append([]string{"body"}, strings.Split(typeErr.Field, ".")...)}
		switch typeErr.Type.Kind() {
		case reflect.Int, reflect.Int32, reflect.Int64:
			item.Msg, item.Type = "Input should be a valid integer", "int_parsing"
		case reflect.Float32, reflect.Float64:
			item.Msg, item.Type = "Input should be a valid number", "float_parsing"
		case reflect.String:
			item.Msg, item.Type = "Input should be a valid string", "string_type"
		default:
			item.Msg, item.Type = "Input has the wrong type", "type_error"
		}
		writeValidation(c, item)
	case errors.Is(err, io.EOF):
		writeValidation(c, ValidationItem{Loc: []string{"body"}, Msg: "Field required", Type: "missing"})
	case errors.As(err, &synErr), errors.Is(err, io.ErrUnexpectedEOF):
		writeValidation(c, ValidationItem{Loc: []string{"body"}, Msg: "JSON decode error", Type: "json_invalid"})
	default:
		writeValidation(c, ValidationItem{Loc: []string{"body"}, Msg: err.Error(), Type: "value_error"})
	}
}

func validationItem(fe validator.FieldError) ValidationItem {
	item := ValidationItem{Loc: []string{"body", fe.Field()}}
	switch fe.Tag() {
	case "required":
		item.Msg, item.Type = "Field required", "missing"
	case "gt":
		item.Msg, item.Type = "Input should be greater than "+fe.Param(), "greater_than"
	case "gte":
		item.Msg, item.Type = "Input should be greater than or equal to "+fe.Param(), "greater_than_equal"
	case "min":
		item.Msg, item.Type = "String should have at least "+fe.Param()+" character", "string_too_short"
	case "oneof":
		item.Msg, item.Type = "Input should be one of: "+strings.Join(strings.Fields(fe.Param()), ", "), "enum"
	default:
		item.Msg, item.Type = fe.Error(), fe.Tag()
	}
	return item
}

func pathParamError(name string) ValidationItem {
	return ValidationItem{
		Loc:  []string{"path", name},
		Msg:  "Input should be a valid integer",
		Type: "int_parsing",
	}
}

var tagNameOnce sync.Once

// useJSONFieldNames makes validator report json tag names, so 422 locations
// match the request body.
func useJSONFieldNames() {
	tagNameOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name == "" {
				return f.Name
			}
			return name
		})
	})
}
