package auth

import (
	"context"
	"crypto/rsa"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// KeySource отдает ключ проверки подписи для конкретного токена.
type KeySource interface {
	// Methods: допустимые алгоритмы (все остальные отклоняются парсером до проверки подписи)
	Methods() []string
	VerifyKey(ctx context.Context, token *jwt.Token) (interface{}, error)
}

// Signer подписывает claims. Есть только там, где токены выпускаем сами (не в oauth режиме).
type Signer interface {
	Sign(claims jwt.Claims) (string, error)
}

// HMACKeys: симметричная схема HS256 с общим секретом.
type HMACKeys struct {
	secret []byte
}

func NewHMACKeys(secret string) (*HMACKeys, error) {
	if len(secret) < 32 {
		return nil, fmt.Errorf("hmac secret too short (min 32 chars)")
	}
	return &HMACKeys{secret: []byte(secret)}, nil
}

func (k *HMACKeys) Methods() []string { return []string{jwt.SigningMethodHS256.Alg()} }

func (k *HMACKeys) VerifyKey(_ context.Context, token *jwt.Token) (interface{}, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
	return k.secret, nil
}

func (k *HMACKeys) Sign(claims jwt.Claims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(k.secret)
}

// RSAKeys: асимметричная схема RS256. Публичная часть публикуется через JWKS.
type RSAKeys struct {
	private *rsa.PrivateKey
	public  *rsa.PublicKey
	kid     string
}

// NewRSAKeys собирает пару из PEM. private может быть nil: тогда только проверка.
func NewRSAKeys(privatePEM, publicPEM []byte) (*RSAKeys, error) {
	pub, err := ParseRSAPublicKey(publicPEM)
	if err != nil {
		return nil, err
	}
	keys := &RSAKeys{public: pub, kid: KeyID(pub)}
	if len(privatePEM) > 0 {
		if keys.private, err = ParseRSAPrivateKey(privatePEM); err != nil {
			return nil, err
		}
		if !keys.private.PublicKey.Equal(pub) {
			return nil, fmt.Errorf("private key does not match public key")
		}
	}
	return keys, nil
}

// NewRSAKeysFromPrivate удобен для тестов и генерации ключей в рантайме.
func NewRSAKeysFromPrivate(private *rsa.PrivateKey) *RSAKeys {
	return &RSAKeys{private: private, public: &private.PublicKey, kid: KeyID(&private.PublicKey)}
}

func (k *RSAKeys) Methods() []string { return []string{jwt.SigningMethodRS256.Alg()} }

func (k *RSAKeys) VerifyKey(_ context.Context, token *jwt.Token) (interface{}, error) {
	if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
		return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
	if kid, ok := token.Header["kid"].(string); ok && kid != k.kid {
		return nil, fmt.Errorf("unknown key id %q", kid)
	}
	return k.public, nil
}

func (k *RSAKeys) Sign(claims jwt.Claims) (string, error) {
	if k.private == nil {
		return "", fmt.Errorf("rsa keys are verify-only")
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = k.kid
	return token.SignedString(k.private)
}

// JWKS возвращает набор с единственным публичным ключом.
func (k *RSAKeys) JWKS() JWKSet {
	return JWKSet{Keys: []JWK{NewRSAJWK(k.public, k.kid)}}
}

// ParseRSAPublicKey превращает []byte в объект для проверки подписи
func ParseRSAPublicKey(data []byte) (*rsa.PublicKey, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("public key data is empty")
	}
	key, err := jwt.ParseRSAPublicKeyFromPEM(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}
	return key, nil
}

// ParseRSAPrivateKey превращает []byte в объект для подписи
func ParseRSAPrivateKey(data []byte) (*rsa.PrivateKey, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("private key data is empty")
	}
	key, err := jwt.ParseRSAPrivateKeyFromPEM(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	return key, nil
}
