package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/julienschmidt/httprouter"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/almuhsiny/blogapi/internal/blogservice"
)

type envelope map[string]any

func (app *application) writeJSON(w http.ResponseWriter, status int, data envelope, headers http.Header) error {
	json, err := json.MarshalIndent(data, "", "\t")
	if err != nil {
		return err
	}

	for key, values := range headers {
		for _, value := range values {
			w.Header().Add(key, value)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(json)

	return nil
}

func (app *application) parseJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	maxBytes := 1_048_576
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxBytes))

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	err := decoder.Decode(dst)
	if err != nil {
		var syntaxError *json.SyntaxError
		var unmarshalTypeError *json.UnmarshalTypeError
		var invalidUnmarshalError *json.InvalidUnmarshalError
		var maxBytesError *http.MaxBytesError

		switch {
		case errors.As(err, &syntaxError):
			return fmt.Errorf("request body contains badly-formed JSON (at character %d)", syntaxError.Offset)
		case errors.Is(err, io.ErrUnexpectedEOF):
			return errors.New("request body contains badly-formed JSON")
		case errors.As(err, &unmarshalTypeError):
			if unmarshalTypeError.Field != "" {
				return fmt.Errorf("request body contains an invalid value for the %q field", unmarshalTypeError.Field)
			}
			return fmt.Errorf("request body contains incorrect JSON type (at character %d)", unmarshalTypeError.Offset)
		case errors.Is(err, io.EOF):
			return errors.New("request body must not be empty")
		case strings.HasPrefix(err.Error(), "json: unknown field "):
			fieldName := strings.TrimPrefix(err.Error(), "json: unknown field ")
			return fmt.Errorf("request body contains unknown field %s", fieldName)
		case errors.As(err, &maxBytesError):
			return fmt.Errorf("request body must not be larger than %d bytes", maxBytesError.Limit)
		case errors.As(err, &invalidUnmarshalError):
			panic(err)
		default:
			return err
		}
	}

	err = decoder.Decode(&struct{}{})
	if !errors.Is(err, io.EOF) {
		return errors.New("request body must only contain a single JSON value")
	}

	return nil
}

func (app *application) readIDParam(r *http.Request, key string) (primitive.ObjectID, error) {
	params := httprouter.ParamsFromContext(r.Context())

	id, err := primitive.ObjectIDFromHex(params.ByName(key))
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("invalid %s parameter", key)
	}

	return id, nil
}

// readListParams extracts the filter, sort and pagination query parameters
// for the blog listing. Defaults: newest first, 20 per page.
func (app *application) readListParams(r *http.Request) (blogservice.Filter, blogservice.Sort, int, int, error) {
	params := r.URL.Query()

	filter := blogservice.Filter{
		Search:   params.Get("q"),
		Category: params.Get("category"),
	}

	if tags := params.Get("tags"); tags != "" {
		filter.Tags = strings.Split(tags, ",")
	}

	sort := blogservice.Sort{Field: blogservice.SortFieldCreatedAt, Desc: true}
	if field := params.Get("sort"); field != "" {
		sort.Field = strings.TrimPrefix(field, "-")
		sort.Desc = strings.HasPrefix(field, "-")
	}

	limit := 20
	offset := 0

	if params.Get("limit") != "" {
		l, err := strconv.Atoi(params.Get("limit"))
		if err != nil {
			return filter, sort, 0, 0, errors.New("invalid limit parameter")
		}
		limit = l
	}

	if params.Get("offset") != "" {
		o, err := strconv.Atoi(params.Get("offset"))
		if err != nil {
			return filter, sort, 0, 0, errors.New("invalid offset parameter")
		}
		offset = o
	}

	return filter, sort, limit, offset, nil
}

func (app *application) extractTokenFromHeader(header string) string {
	parts := strings.Split(header, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}

	return parts[1]
}
