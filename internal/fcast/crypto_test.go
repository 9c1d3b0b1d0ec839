package fcast

import (
	"encoding/base64"
	"testing"
)

// Known-answer vectors captured from an independent DH/AES-CBC
// implementation of the same legacy encrypted session protocol, used to
// verify this package derives byte-identical keys and ciphertexts.

const knownPrivateKey1 = "MIIDJwIBADCCAhgGCSqGSIb3DQEDATCCAgkCggEBAJVHXPXZPllsP80dkCrdAvQn9fPHIQMTu0X7TVuy5f4cvWeM1LvdhMmDa+HzHAd3clrrbC/Di4X0gHb6drzYFGzImm+y9wbdcZiYwgg9yNiW+EBi4snJTRN7BUqNgJatuNUZUjmO7KhSoK8S34Pkdapl1OwMOKlWDVZhGG/5i5/J62Du6LAwN2sja8c746zb10/WHB0kdfowd7jwgEZ4gf9+HKVv7gZteVBq3lHtu1RDpWOSfbxLpSAIZ0YXXIiFkl68ZMYUeQZ3NJaZDLcU7GZzBOJh+u4zs8vfAI4MP6kGUNl9OQnJJ1v0rIb/yz0D5t/IraWTQkLdbTvMoqQGywsCggEAQt67naWz2IzJVuCHh+w/Ogm7pfSLiJp0qvUxdKoPvn48W4/NelO+9WOw6YVgMolgqVF/QBTTMl/Hlivx4Ek3DXbRMUp2E355Lz8NuFnQleSluTICTweezy7wnHl0UrB3DhNQeC7Vfd95SXnc7yPLlvGDBhllxOvJPJxxxWuSWVWnX5TMzxRJrEPVhtC+7kMlGwsihzSdaN4NFEQD8T6AL0FG2ILgV68ZtvYnXGZ2yPoOPKJxOjJX/Rsn0GOfaV40fY0c+ayBmibKmwTLDrm3sDWYjRW7rGUhKlUjnPx+WPrjjXJQq5mR/7yXE0Al/ozgTEOZrZZWm+kaVG9JeGk8egSCAQQCggEAECNvEczf0y6IoX/IwhrPeWZ5IxrHcpwjcdVAuyZQLLlOq0iqnYMFcSD8QjMF8NKObfZZCDQUJlzGzRsG0oXsWiWtmoRvUZ9tQK0j28hDylpbyP00Bt9NlMgeHXkAy54P7Z2v/BPCd3o23kzjgXzYaSRuCFY7zQo1g1IQG8mfjYjdE4jjRVdVrlh8FS8x4OLPeglc+cp2/kuyxaVEfXAG84z/M8019mRSfdczi4z1iidPX6HgDEEWsN42Ud60mNKy5jsQpQYkRdOLmxR3+iQEtGFjdzbVhVCUr7S5EORU9B1MOl5gyPJpjfU3baOqrg6WXVyTvMDaA05YEnAHQNOOfA=="

const knownPublicKey2 = "MIIDJTCCAhgGCSqGSIb3DQEDATCCAgkCggEBAJVHXPXZPllsP80dkCrdAvQn9fPHIQMTu0X7TVuy5f4cvWeM1LvdhMmDa+HzHAd3clrrbC/Di4X0gHb6drzYFGzImm+y9wbdcZiYwgg9yNiW+EBi4snJTRN7BUqNgJatuNUZUjmO7KhSoK8S34Pkdapl1OwMOKlWDVZhGG/5i5/J62Du6LAwN2sja8c746zb10/WHB0kdfowd7jwgEZ4gf9+HKVv7gZteVBq3lHtu1RDpWOSfbxLpSAIZ0YXXIiFkl68ZMYUeQZ3NJaZDLcU7GZzBOJh+u4zs8vfAI4MP6kGUNl9OQnJJ1v0rIb/yz0D5t/IraWTQkLdbTvMoqQGywsCggEAQt67naWz2IzJVuCHh+w/Ogm7pfSLiJp0qvUxdKoPvn48W4/NelO+9WOw6YVgMolgqVF/QBTTMl/Hlivx4Ek3DXbRMUp2E355Lz8NuFnQleSluTICTweezy7wnHl0UrB3DhNQeC7Vfd95SXnc7yPLlvGDBhllxOvJPJxxxWuSWVWnX5TMzxRJrEPVhtC+7kMlGwsihzSdaN4NFEQD8T6AL0FG2ILgV68ZtvYnXGZ2yPoOPKJxOjJX/Rsn0GOfaV40fY0c+ayBmibKmwTLDrm3sDWYjRW7rGUhKlUjnPx+WPrjjXJQq5mR/7yXE0Al/ozgTEOZrZZWm+kaVG9JeGk8egOCAQUAAoIBAGlL9EYsrFz3I83NdlwhM241M+M7PA9P5WXgtdvS+pcalIaqN2IYdfzzCUfye7lchVkT9A2Y9eWQYX0OUhmjf8PPKkRkATLXrqO5HTsxV96aYNxMjz5ipQ6CaErTQaPLr3OPoauIMPVVI9zM+WT0KOGp49YMyx+B5rafT066vOVbF/0z1crq0ZXxyYBUv135rwFkIHxBMj5bhRLXKsZ2G5aLAZg0DsVam104mgN/v75f7Spg/n5hO7qxbNgbvSrvQ7Ag/rMk5T3sk7KoM23Qsjl08IZKs2jjx21MiOtyLqGuCW6GOTNK4yEEDF5gA0K13eXGwL5lPS0ilRw+Lrw7cJU="

const knownSharedSecretBase64 = "vI5LGE625zGEG350ggkyBsIAXm2y4sNohiPcED1oAEE="

func TestSharedSecretMatchesKnownVector(t *testing.T) {
	priv, err := base64.StdEncoding.DecodeString(knownPrivateKey1)
	if err != nil {
		t.Fatal(err)
	}
	pub, err := base64.StdEncoding.DecodeString(knownPublicKey2)
	if err != nil {
		t.Fatal(err)
	}
	got, err := sharedSecretFromDER(priv, pub)
	if err != nil {
		t.Fatalf("sharedSecretFromDER: %v", err)
	}
	want, err := base64.StdEncoding.DecodeString(knownSharedSecretBase64)
	if err != nil {
		t.Fatal(err)
	}
	if base64.StdEncoding.EncodeToString(got) != base64.StdEncoding.EncodeToString(want) {
		t.Fatalf("shared secret = %s, want %s", base64.StdEncoding.EncodeToString(got), knownSharedSecretBase64)
	}
}

func TestDecryptMessageKnownVector(t *testing.T) {
	ivStr := "C4H70VC5FWrNtkty9/cLIA=="
	enc := EncryptedMessage{
		Version: 1,
		IV:      &ivStr,
		Blob:    "K6/N7JMyi1PFwKhU0mFj7ZJmd/tPp3NCOMldmQUtDaQ7hSmPoIMI5QNMOj+NFEiP4qTgtYp5QmBPoQum6O88pA==",
	}
	key, err := base64.StdEncoding.DecodeString("+hr9Jg8yre7S9WGUohv2AUSzHNQN514JPh6MoFAcFNU=")
	if err != nil {
		t.Fatal(err)
	}
	msg, err := decryptMessage(key, enc)
	if err != nil {
		t.Fatalf("decryptMessage: %v", err)
	}
	if msg.Opcode != 1 {
		t.Fatalf("opcode = %d, want 1", msg.Opcode)
	}
	if msg.Message == nil || *msg.Message != `{"container":"text/html"}` {
		t.Fatalf("message = %v, want {\"container\":\"text/html\"}", msg.Message)
	}
}

func TestAESKeyGenerationKnownVectors(t *testing.T) {
	cases := []struct {
		name       string
		publicOther string
		privateSelf string
		wantAES     string
	}{
		{
			name:        "case1",
			publicOther: "MIIBHzCBlQYJKoZIhvcNAQMBMIGHAoGBAP//////////yQ/aoiFowjTExmKLgNwc0SkCTgiKZ8x0Agu+pjsTmyJRSgh5jjQE3e+VGbPNOkMbMCsKbfJfFDdP4TVtbVHCReSFtXZiXn7G9ExC6aY37WsL/1y29Aa37e44a/taiZ+lrp8kEXxLH+ZJKGZR7OZTgf//////////AgECA4GEAAKBgEnOS0oHteVA+3kND3u4yXe7GGRohy1LkR9Q5tL4c4ylC5n4iSwWSoIhcSIvUMWth6KAhPhu05sMcPY74rFMSS2AGTNCdT/5KilediipuUMdFVvjGqfNMNH1edzW5mquIw3iXKdfQmfY/qxLTI2wccyDj4hHFhLCZL3Y+shsm3KF",
			privateSelf: "MIIBIQIBADCBlQYJKoZIhvcNAQMBMIGHAoGBAP//////////yQ/aoiFowjTExmKLgNwc0SkCTgiKZ8x0Agu+pjsTmyJRSgh5jjQE3e+VGbPNOkMbMCsKbfJfFDdP4TVtbVHCReSFtXZiXn7G9ExC6aY37WsL/1y29Aa37e44a/taiZ+lrp8kEXxLH+ZJKGZR7OZTgf//////////AgECBIGDAoGAeo/ceIeH8Jt1ZRNKX5aTHkMi23GCV1LtcS2O6Tktn9k8DCv7gIoekysQUhMyWtR+MsZlq2mXjr1JFpAyxl89rqoEPU6QDsGe9q8R4O8eBZ2u+48mkUkGSh7xPGRQUBvmhH2yk4hIEA8aK4BcYi1OTsCZtmk7pQq+uaFkKovD/8M=",
			wantAES:     "7dpl1/6KQTTooOrFf2VlUOSqgrFHi6IYxapX0IxFfwk=",
		},
		{
			name:        "case2",
			publicOther: "MIIBHzCBlQYJKoZIhvcNAQMBMIGHAoGBAP//////////yQ/aoiFowjTExmKLgNwc0SkCTgiKZ8x0Agu+pjsTmyJRSgh5jjQE3e+VGbPNOkMbMCsKbfJfFDdP4TVtbVHCReSFtXZiXn7G9ExC6aY37WsL/1y29Aa37e44a/taiZ+lrp8kEXxLH+ZJKGZR7OZTgf//////////AgECA4GEAAKBgGvIlCP/S+xpAuNEHSn4cEDOL1esUf+uMuY2Kp5J10a7HGbwzNd+7eYsgEc4+adddgB7hJgTvjsGg7lXUhHQ7WbfbCGgt7dbkx8qkic6Rgq4f5eRYd1Cgidw4MhZt7mEIOKrHweqnV6B9rypbXjbqauc6nGgtwx+Gvl6iLpVATRK",
			privateSelf: "MIIBIQIBADCBlQYJKoZIhvcNAQMBMIGHAoGBAP//////////yQ/aoiFowjTExmKLgNwc0SkCTgiKZ8x0Agu+pjsTmyJRSgh5jjQE3e+VGbPNOkMbMCsKbfJfFDdP4TVtbVHCReSFtXZiXn7G9ExC6aY37WsL/1y29Aa37e44a/taiZ+lrp8kEXxLH+ZJKGZR7OZTgf//////////AgECBIGDAoGAMXmiIgWyutbaO+f4UiMAb09iVVSCI6Lb6xzNyD2MpUZyk4/JOT04Daj4JeCKFkF1Fq79yKhrnFlXCrF4WFX00xUOXb8BpUUUH35XG5ApvolQQLL6N0om8/MYP4FK/3PUxuZAJz45TUsI/v3u6UqJelVTNL83ltcFbZDIfEVftRA=",
			wantAES:     "a2tUSxnXifKohfNocAQHkAlPffDv6ReihJ7OojBGt0Q=",
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			priv, err := base64.StdEncoding.DecodeString(c.privateSelf)
			if err != nil {
				t.Fatal(err)
			}
			pub, err := base64.StdEncoding.DecodeString(c.publicOther)
			if err != nil {
				t.Fatal(err)
			}
			got, err := sharedSecretFromDER(priv, pub)
			if err != nil {
				t.Fatalf("sharedSecretFromDER: %v", err)
			}
			want, err := base64.StdEncoding.DecodeString(c.wantAES)
			if err != nil {
				t.Fatal(err)
			}
			if base64.StdEncoding.EncodeToString(got) != base64.StdEncoding.EncodeToString(want) {
				t.Fatalf("aes key = %s, want %s", base64.StdEncoding.EncodeToString(got), c.wantAES)
			}
		})
	}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	kp1, err := GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	kp2, err := GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	pub1, err := kp1.PublicKeyBase64()
	if err != nil {
		t.Fatal(err)
	}
	pub2, err := kp2.PublicKeyBase64()
	if err != nil {
		t.Fatal(err)
	}
	key1, err := kp1.SharedSecret(pub2)
	if err != nil {
		t.Fatal(err)
	}
	key2, err := kp2.SharedSecret(pub1)
	if err != nil {
		t.Fatal(err)
	}
	if base64.StdEncoding.EncodeToString(key1) != base64.StdEncoding.EncodeToString(key2) {
		t.Fatal("shared secrets diverged between the two sides")
	}

	body := `{"type": "text/html"}`
	msg := DecryptedMessage{Opcode: 1, Message: &body}
	enc, err := encryptMessage(key1, msg)
	if err != nil {
		t.Fatalf("encryptMessage: %v", err)
	}
	dec, err := decryptMessage(key1, enc)
	if err != nil {
		t.Fatalf("decryptMessage: %v", err)
	}
	if dec.Opcode != msg.Opcode || dec.Message == nil || *dec.Message != *msg.Message {
		t.Fatalf("round trip mismatch: got %+v, want %+v", dec, msg)
	}
}
