package middleware

import (
	"context"
	"net/http"
	"strings"
)

const (
	DeviceHeader = "X-Device-ID"

	maxDeviceIDLength = 128
)

// DeviceMiddleware requires the X-Device-ID header that selects the cart
// session of a client
func DeviceMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		deviceID := strings.TrimSpace(r.Header.Get(DeviceHeader))
		if deviceID == "" {
			respondError(w, "missing "+DeviceHeader+" header", http.StatusBadRequest)
			return
		}
		if len(deviceID) > maxDeviceIDLength {
			respondError(w, "invalid "+DeviceHeader+" header", http.StatusBadRequest)
			return
		}
		ctx := context.WithValue(r.Context(), DeviceContextKey, deviceID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func GetDeviceID(ctx context.Context) string {
	id, _ := ctx.Value(DeviceContextKey).(string)
	return id
}
