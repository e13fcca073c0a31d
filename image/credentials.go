package image

import (
	"context"
	"fmt"

	"github.com/viant/scy"
	"github.com/viant/scy/cred"
)

// LoadCredentials decrypts basic registry credentials stored at URL with key
// (for example blowfish://default).
func LoadCredentials(ctx context.Context, registry, URL, key string) (*Credentials, error) {
	secret, err := scy.New().Load(ctx, scy.NewResource(&cred.Basic{}, URL, key))
	if err != nil {
		return nil, fmt.Errorf("failed to load registry credentials %v: %w", URL, err)
	}
	basic, ok := secret.Target.(*cred.Basic)
	if !ok {
		return nil, fmt.Errorf("unexpected registry credentials type %T", secret.Target)
	}
	return &Credentials{Registry: registry, Username: basic.Username, Password: basic.Password}, nil
}
