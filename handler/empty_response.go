package handler

import "net/http"

type statusResponse int

func (s statusResponse) Render(w http.ResponseWriter, _ *http.Request) error {
	w.WriteHeader(int(s))
	return nil
}

// Empty responds 204 with no body.
func Empty() Response {
	return statusResponse(http.StatusNoContent)
}
