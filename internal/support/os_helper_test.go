package support

import (
	"errors"
	"testing"
)

func TestGetEnv(t *testing.T) {
	t.Setenv("VPNROTATOR_TEST_ENV", "value")
	if got := GetEnv("VPNROTATOR_TEST_ENV", "fallback"); got != "value" {
		t.Fatalf("GetEnv returned %s, want value", got)
	}

	if got := GetEnv("VPNROTATOR_TEST_ENV_MISSING", "fallback"); got != "fallback" {
		t.Fatalf("GetEnv returned %s, want fallback", got)
	}
}

func TestGetEnvInt(t *testing.T) {
	t.Setenv("VPNROTATOR_TEST_INT", " 42 ")
	if got := GetEnvInt("VPNROTATOR_TEST_INT", 7); got != 42 {
		t.Fatalf("GetEnvInt returned %d, want 42", got)
	}

	t.Setenv("VPNROTATOR_TEST_INT", "nope")
	if got := GetEnvInt("VPNROTATOR_TEST_INT", 7); got != 7 {
		t.Fatalf("GetEnvInt returned %d, want fallback 7", got)
	}
}

func TestGetEnvBool(t *testing.T) {
	t.Setenv("VPNROTATOR_TEST_BOOL", "true")
	if !GetEnvBool("VPNROTATOR_TEST_BOOL", false) {
		t.Fatal("GetEnvBool returned false, want true")
	}

	t.Setenv("VPNROTATOR_TEST_BOOL", "maybe")
	if GetEnvBool("VPNROTATOR_TEST_BOOL", false) {
		t.Fatal("GetEnvBool should fall back for unparsable values")
	}
}

func TestHashStringDeterministic(t *testing.T) {
	if got1, got2 := HashString("input"), HashString("input"); got1 != got2 {
		t.Fatal("HashString returned different values for the same input")
	}

	if HashString("input") == HashString("different") {
		t.Fatal("HashString returned same value for different inputs")
	}
}

func TestRedisURLPrecedence(t *testing.T) {
	t.Setenv("REDIS_URL", "")
	t.Setenv("redisUrl", "redis://legacy:6379")
	if got := RedisURL(); got != "redis://legacy:6379" {
		t.Fatalf("RedisURL returned %q, want legacy url", got)
	}

	t.Setenv("REDIS_URL", "redis://primary:6379")
	if got := RedisURL(); got != "redis://primary:6379" {
		t.Fatalf("RedisURL returned %q, want primary url", got)
	}
}

func TestGetRedisClientNotConfigured(t *testing.T) {
	t.Setenv("REDIS_URL", "")
	t.Setenv("redisUrl", "")
	if err := CloseRedisClient(); err != nil {
		t.Fatalf("CloseRedisClient returned error: %v", err)
	}

	if _, err := GetRedisClient(); !errors.Is(err, ErrRedisNotConfigured) {
		t.Fatalf("expected ErrRedisNotConfigured, got %v", err)
	}
}
