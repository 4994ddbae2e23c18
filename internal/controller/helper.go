package controller

import (
	"fmt"
	"net/http"
)

const headerPrefix = "Wr-"

func (c controller) mustHeader(r *http.Request, key string) (string, error) {
	value := r.Header.Get(headerPrefix + key)
	if value == "" {
		return "", fmt.Errorf("%s was not provided", key)
	}

	return value, nil
}

func (c controller) header(r *http.Request, key string) string {
	return r.Header.Get(headerPrefix + key)
}
