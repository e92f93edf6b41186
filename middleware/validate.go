package middleware

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"

	"github.com/Web2Bizz/atom-dbro-backend-sub000/utils"
)

var errUnsupportedMedia = errors.New("content-type must be application/json")

// ValidateJSON decodes JSON payload into dst and runs utils.ValidateStruct.
// On failure the response has already been written.
func ValidateJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	if mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type")); err != nil || mt != "application/json" {
		utils.WriteError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return errUnsupportedMedia
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			utils.WriteError(w, http.StatusRequestEntityTooLarge, "Request body too large")
			return err
		}
		utils.WriteError(w, http.StatusBadRequest, "Invalid JSON body")
		return err
	}
	if err := utils.ValidateStruct(dst); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.APIResponse{Success: false, Message: "Validation failed", Data: err.Error()})
		return err
	}
	return nil
}
