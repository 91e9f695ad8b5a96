package infra

const (
	// RedisNamespace Базовый префикс для изоляции данных проекта в Redis
	RedisNamespace = "orbit"
)

// Префиксы ключей (значение: JSON записи, TTL совпадает со сроком жизни)
const (
	RedisKeyRefreshPrefix = RedisNamespace + ":refresh:" // + sha256(refresh token)
	RedisKeySessionPrefix = RedisNamespace + ":session:" // + session id
)

// RefreshKey ключ записи refresh-токена по хэшу.
func RefreshKey(tokenHash string) string {
	return RedisKeyRefreshPrefix + tokenHash
}

// SessionKey ключ серверной сессии.
func SessionKey(id string) string {
	return RedisKeySessionPrefix + id
}
