package providers

import (
	"encoding/hex"

	"github.com/samber/do/v2"

	"github.com/headercal/headercal-server/internal/auth"
	"github.com/headercal/headercal-server/internal/config"
	"github.com/headercal/headercal-server/internal/logger"
)

// AuthKey wraps the identity token key bytes.
type AuthKey []byte

// ProvideAuthKey loads or generates the identity token key.
func ProvideAuthKey(i do.Injector) (AuthKey, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	if len(cfg.Auth.TokenKey) > 0 {
		log.Info("Identity token key taken from configuration")
		return AuthKey(cfg.Auth.TokenKey), nil
	}

	key, err := auth.LoadOrGenerateKey(cfg.Data.Path)
	if err != nil {
		return nil, err
	}
	cfg.Auth.TokenKey = key

	log.Info("Identity token key loaded",
		"identity_token_duration", cfg.Auth.IdentityTokenDuration,
		"token_cache_ttl", cfg.Auth.TokenCacheTTL,
	)

	return AuthKey(key), nil
}

// ProvideTokenService provides the PASETO identity token service.
func ProvideTokenService(i do.Injector) (*auth.TokenService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	authKey := do.MustInvoke[AuthKey](i)

	keyHex := hex.EncodeToString([]byte(authKey))
	return auth.NewTokenService(keyHex, cfg.Auth.IdentityTokenDuration)
}

// ProvideVerifier provides the cached token verifier used by the HTTP
// and stream surfaces.
func ProvideVerifier(i do.Injector) (*auth.CachedVerifier, error) {
	cfg := do.MustInvoke[*config.Config](i)
	tokens := do.MustInvoke[*auth.TokenService](i)

	return auth.NewCachedVerifier(tokens, cfg.Auth.TokenCacheTTL), nil
}
