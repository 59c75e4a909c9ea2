package service

import (
	"context"
	"fmt"

	"catalyst/internal/config"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/rs/zerolog"
)

// ResolveSecrets overrides API keys in the config with values from Secret
// Manager. Only keys with a configured secret name are touched, so local
// development keeps using plain environment variables.
func ResolveSecrets(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	if cfg.GCPProjectID == "" {
		return nil
	}

	targets := []struct {
		secretName string
		dest       *string
	}{
		{cfg.SecretNameStripeKey, &cfg.StripeSecretKey},
		{cfg.SecretNameLLMKey, &cfg.LLMAPIKey},
		{cfg.SecretNameSearchKey, &cfg.SearchAPIKey},
	}

	any := false
	for _, t := range targets {
		if t.secretName != "" {
			any = true
		}
	}
	if !any {
		return nil
	}

	client, err := secretmanager.NewClient(ctx)
	if err != nil {
		return fmt.Errorf("creating Secret Manager client: %w", err)
	}
	defer client.Close()

	for _, t := range targets {
		if t.secretName == "" {
			continue
		}
		name := fmt.Sprintf("projects/%s/secrets/%s/versions/latest", cfg.GCPProjectID, t.secretName)
		resp, err := client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{Name: name})
		if err != nil {
			return fmt.Errorf("accessing secret %s: %w", t.secretName, err)
		}
		*t.dest = string(resp.Payload.Data)
		logger.Info().Str("secret", t.secretName).Msg("Loaded secret from Secret Manager")
	}
	return nil
}
