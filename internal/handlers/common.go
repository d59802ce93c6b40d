package handlers

import (
	"errors"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/MarlonX-a/serverless/internal/repository"
)

// IdempotencyHeader may carry the operation key instead of the body field.
const IdempotencyHeader = "Idempotency-Key"

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report fields by their JSON names
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// bindAndValidate parses the JSON body into dst and validates it. On failure
// it has already written the 400 response and returns false.
func bindAndValidate(c *fiber.Ctx, dst any) (bool, error) {
	if err := c.BodyParser(dst); err != nil {
		return false, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid JSON body",
		})
	}
	if err := validate.Struct(dst); err != nil {
		return false, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":  "validation failed",
			"fields": fieldErrors(err),
		})
	}
	return true, nil
}

func fieldErrors(err error) map[string]string {
	fields := map[string]string{}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			fields[fe.Field()] = fe.Tag()
		}
	}
	return fields
}

// idempotencyKey prefers the header over the body field.
func idempotencyKey(c *fiber.Ctx, fromBody string) string {
	if key := strings.TrimSpace(c.Get(IdempotencyHeader)); key != "" {
		return key
	}
	return strings.TrimSpace(fromBody)
}

func parseID(c *fiber.Ctx, param string) (int64, bool, error) {
	id, err := strconv.ParseInt(c.Params(param), 10, 64)
	if err != nil || id <= 0 {
		return 0, false, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": param + " must be a positive integer",
		})
	}
	return id, true, nil
}

// parsePage reads limit and offset query parameters.
func parsePage(c *fiber.Ctx) (repository.Page, bool, error) {
	page := repository.Page{Limit: repository.DefaultPageSize}

	if limitStr := c.Query("limit"); limitStr != "" {
		parsedLimit, err := strconv.Atoi(limitStr)
		if err != nil || parsedLimit <= 0 {
			return page, false, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "limit must be a positive integer",
			})
		}
		page.Limit = parsedLimit
	}

	if offsetStr := c.Query("offset"); offsetStr != "" {
		parsedOffset, err := strconv.Atoi(offsetStr)
		if err != nil || parsedOffset < 0 {
			return page, false, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "offset must be a non-negative integer",
			})
		}
		page.Offset = parsedOffset
	}
	return page, true, nil
}
