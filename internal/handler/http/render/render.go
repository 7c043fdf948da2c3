package render

import (
	"encoding/json"
	"net/http"
)

type errorBody struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func Error(w http.ResponseWriter, status int, code, description string) {
	var body errorBody
	body.Error.Code = code
	body.Error.Description = description
	JSON(w, status, body)
}
