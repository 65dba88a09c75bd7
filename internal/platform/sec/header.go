// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sec

import "strings"

const bearerPrefix = "Bearer "

// ExtractBearer returns the token carried by an Authorization header value.
//
// Only the exact form "Bearer <token>" is accepted. An empty header, another
// scheme, a missing prefix or an empty token all yield ("", false).
func ExtractBearer(headerValue string) (string, bool) {
	if !strings.HasPrefix(headerValue, bearerPrefix) {
		return "", false
	}

	token := headerValue[len(bearerPrefix):]
	if token == "" || strings.ContainsAny(token, " \t") {
		return "", false
	}

	return token, true
}
