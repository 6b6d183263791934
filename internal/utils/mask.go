package utils

// MaskSecret keeps the first four characters of s so log lines can still
// be correlated with a configured token
func MaskSecret(s string) string {
	switch {
	case s == "":
		return ""
	case len(s) <= 4:
		return "*****"
	}
	return s[:4] + "*****"
}
