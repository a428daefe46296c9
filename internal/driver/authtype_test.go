package driver

import "testing"

func TestInferAuthTypeDefaultsToScram(t *testing.T) {
	if got := InferAuthType("mongodb://localhost:27017", false); got != AuthTypeScram {
		t.Fatalf("expected scram, got %s", got)
	}
}

func TestInferAuthTypeX509(t *testing.T) {
	got := InferAuthType("mongodb://localhost:27017/?authMechanism=MONGODB-X509", false)
	if got != AuthTypeX509 {
		t.Fatalf("expected x.509, got %s", got)
	}
}

func TestInferAuthTypeOIDCChoosesFlowByBrowser(t *testing.T) {
	uri := "mongodb+srv://cluster0.example.mongodb.net/?authMechanism=MONGODB-OIDC"
	if got := InferAuthType(uri, true); got != AuthTypeOIDCAuthFlow {
		t.Fatalf("expected oidc-auth-flow with browser available, got %s", got)
	}
	if got := InferAuthType(uri, false); got != AuthTypeOIDCDeviceFlow {
		t.Fatalf("expected oidc-device-flow without browser, got %s", got)
	}
}

func TestAuthTypeIsOIDC(t *testing.T) {
	if !AuthTypeOIDCDeviceFlow.IsOIDC() {
		t.Fatal("expected oidc-device-flow to report IsOIDC true")
	}
	if AuthTypeScram.IsOIDC() {
		t.Fatal("expected scram to report IsOIDC false")
	}
}
