// Package clientip extracts real client IP addresses from HTTP requests.
//
// The package handles proxy headers in priority order to determine the actual
// client IP address, which is essential for rate limiting and security logging
// behind proxies, load balancers, or CDNs.
//
// # Header Priority
//
// Headers are checked in this specific order:
//  1. CF-Connecting-IP (Cloudflare)
//  2. DO-Connecting-IP (DigitalOcean)
//  3. X-Forwarded-For (most common proxy header)
//  4. X-Real-IP (nginx and other proxies)
//  5. RemoteAddr (direct connection)
//
// # Usage
//
//	func handleRequest(w http.ResponseWriter, r *http.Request) {
//		ip := clientip.GetIP(r)
//		if isRateLimited(ip) {
//			http.Error(w, "Rate limited", http.StatusTooManyRequests)
//			return
//		}
//		// Continue processing...
//	}
//
// # Validation
//
// All candidates are validated and normalized with net.ParseIP. Malformed
// headers are silently skipped, the unspecified address 0.0.0.0 is rejected,
// and X-Forwarded-For chains ("client, proxy1, proxy2") yield the leftmost
// entry. IPv6 addresses are supported in every header. The function never
// panics; when no valid IP can be determined it returns the raw RemoteAddr.
package clientip
