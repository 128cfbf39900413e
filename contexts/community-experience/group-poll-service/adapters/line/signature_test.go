package lineadapter

import "testing"

func TestValidateSignature(t *testing.T) {
	body := []byte(`{"events":[]}`)
	signature := Sign(body, "secret")

	if !ValidateSignature(signature, body, "secret") {
		t.Fatalf("expected signature to validate")
	}
	if ValidateSignature(signature, []byte(`{"events":[{}]}`), "secret") {
		t.Fatalf("tampered body must not validate")
	}
	if ValidateSignature(signature, body, "other") {
		t.Fatalf("wrong secret must not validate")
	}
	if ValidateSignature("", body, "secret") || ValidateSignature(signature, body, "") {
		t.Fatalf("missing signature or secret must not validate")
	}
	if ValidateSignature("%%%not-base64", body, "secret") {
		t.Fatalf("malformed signature must not validate")
	}
}
