package platform

import (
	"context"
	"testing"

	"github.com/hitoshi/profileman/internal/mapper"
	"github.com/hitoshi/profileman/internal/model"
)

func TestRegistry_Lookup(t *testing.T) {
	google := NewGoogleAdapter(nil, &mockCredentialSource{}, newTestLogger())
	firmy := NewFirmyAdapter()
	registry := NewRegistry(google, firmy)

	a, ok := registry.Lookup(model.PlatformGoogle)
	if !ok {
		t.Fatal("google adapter should be registered")
	}
	if a.Platform() != model.PlatformGoogle {
		t.Errorf("Platform() = %q, want google", a.Platform())
	}

	if _, ok := registry.Lookup(model.PlatformFacebook); ok {
		t.Error("facebook adapter should not be registered")
	}
}

// Platforms()はKnownPlatformsの固定順序で返すこと
func TestRegistry_PlatformsOrder(t *testing.T) {
	registry := NewRegistry(
		NewFirmyAdapter(),
		NewGoogleAdapter(nil, &mockCredentialSource{}, newTestLogger()),
		NewFacebookAdapter(nil, &mockCredentialSource{}, newTestLogger()),
	)

	platforms := registry.Platforms()
	want := []model.Platform{model.PlatformGoogle, model.PlatformFacebook, model.PlatformFirmy}
	if len(platforms) != len(want) {
		t.Fatalf("len = %d, want %d", len(platforms), len(want))
	}
	for i, p := range want {
		if platforms[i] != p {
			t.Errorf("platforms[%d] = %q, want %q", i, platforms[i], p)
		}
	}
}

func TestFirmyAdapter_AlwaysReturnsUnimplemented(t *testing.T) {
	adapter := NewFirmyAdapter()

	result := adapter.Push(context.Background(), testConnection(model.PlatformFirmy), &mapper.Payload{
		Platform: model.PlatformFirmy,
	})

	if result.Success {
		t.Error("firmy stub should never report success")
	}
	if result.Platform != model.PlatformFirmy {
		t.Errorf("Platform = %q, want firmy", result.Platform)
	}
	if result.Message != "Firmy.cz連携は未実装です。" {
		t.Errorf("Message = %q", result.Message)
	}
}
