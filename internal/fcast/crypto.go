package fcast

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509/pkix"
	"encoding/asn1"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
)

// group14PrimeHex is the RFC3526 MODP Group 14 (2048-bit) prime, used as the
// Diffie-Hellman modulus for the legacy (v1) encrypted session path.
const group14PrimeHex = "ffffffffffffffffc90fdaa22168c234c4c6628b80dc1cd129024e088a67cc74020bbea63b139b22514a08798e3404ddef9519b3cd3a431b302b0a6df25f14374fe1356d6d51c245e485b576625e7ec6f44c42e9a637ed6b0bff5cb6f406b7edee386bfb5a899fa5ae9f24117c4b1fe649286651ece45b3dc2007cb8a163bf0598da48361c55d39a69163fa8fd24cf5f83655d23dca3ad961c62f356208552bb9ed529077096966d670c354e4abc9804f1746c08ca18217c32905e462e36ce3be39e772c180e86039b2783a2ec07a28fb5c55df06f4c52c9de2bcbf6955817183995497cea956ae515d2261898fa051015728e5a8aacaa68ffffffffffffffff"

// dhOID is the PKCS#3 dhKeyAgreement object identifier, used in the
// AlgorithmIdentifier of both the SubjectPublicKeyInfo and PrivateKeyInfo
// ASN.1 structures that carry DH keys.
var dhOID = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 3, 1}

func group14Params() (p, g *big.Int) {
	p, _ = new(big.Int).SetString(group14PrimeHex, 16)
	g = big.NewInt(2)
	return p, g
}

// dhParameter mirrors PKCS#3's DHParameter ASN.1 type, embedded in the
// AlgorithmIdentifier of both DH public and private key encodings.
type dhParameter struct {
	P                  *big.Int
	G                  *big.Int
	PrivateValueLength int `asn1:"optional"`
}

// KeyPair is a generated Diffie-Hellman key pair over RFC3526 Group 14.
type KeyPair struct {
	p, g       *big.Int
	private    *big.Int
	public     *big.Int
}

// GenerateKeyPair creates a fresh DH key pair for the legacy encrypted
// session path.
func GenerateKeyPair() (*KeyPair, error) {
	p, g := group14Params()
	private, err := rand.Int(rand.Reader, p)
	if err != nil {
		return nil, fmt.Errorf("fcast: generate dh private value: %w", err)
	}
	public := new(big.Int).Exp(g, private, p)
	return &KeyPair{p: p, g: g, private: private, public: public}, nil
}

// PublicKeyBase64 returns the public key as a base64-encoded X.509
// SubjectPublicKeyInfo DER blob, the form exchanged on the wire.
func (k *KeyPair) PublicKeyBase64() (string, error) {
	der, err := marshalDHPublicKey(k.public, k.p, k.g)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(der), nil
}

// SharedSecret computes the AES key derived from this key pair's private
// value and a peer's base64-encoded DH public key: SHA-256 of the raw DH
// shared secret, matching the reference implementation's KDF.
func (k *KeyPair) SharedSecret(peerPublicBase64 string) ([]byte, error) {
	peerDER, err := base64.StdEncoding.DecodeString(peerPublicBase64)
	if err != nil {
		return nil, fmt.Errorf("fcast: decode peer public key: %w", err)
	}
	peerPub, _, _, err := parseDHPublicKey(peerDER)
	if err != nil {
		return nil, err
	}
	secret := new(big.Int).Exp(peerPub, k.private, k.p)
	sum := sha256.Sum256(secret.Bytes())
	return sum[:], nil
}

// sharedSecretFromDER computes the SHA-256-derived AES key from a raw DER
// private key blob and a raw DER public key blob, both fully self-describing
// (embedding p and g). It exists to verify interoperability against known
// test vectors captured from an independent implementation, where both sides
// of the exchange are supplied directly rather than generated locally.
func sharedSecretFromDER(privateDER, publicDER []byte) ([]byte, error) {
	priv, p, _, err := parseDHPrivateKey(privateDER)
	if err != nil {
		return nil, err
	}
	pub, _, _, err := parseDHPublicKey(publicDER)
	if err != nil {
		return nil, err
	}
	secret := new(big.Int).Exp(pub, priv, p)
	sum := sha256.Sum256(secret.Bytes())
	return sum[:], nil
}

func marshalDHPublicKey(y, p, g *big.Int) ([]byte, error) {
	paramBytes, err := asn1.Marshal(dhParameter{P: p, G: g})
	if err != nil {
		return nil, err
	}
	yBytes, err := asn1.Marshal(y)
	if err != nil {
		return nil, err
	}
	type subjectPublicKeyInfo struct {
		Algorithm pkix.AlgorithmIdentifier
		PublicKey asn1.BitString
	}
	spki := subjectPublicKeyInfo{
		Algorithm: pkix.AlgorithmIdentifier{
			Algorithm:  dhOID,
			Parameters: asn1.RawValue{FullBytes: paramBytes},
		},
		PublicKey: asn1.BitString{Bytes: yBytes, BitLength: len(yBytes) * 8},
	}
	return asn1.Marshal(spki)
}

func parseDHPublicKey(der []byte) (y, p, g *big.Int, err error) {
	var spki struct {
		Algorithm pkix.AlgorithmIdentifier
		PublicKey asn1.BitString
	}
	if _, err = asn1.Unmarshal(der, &spki); err != nil {
		return nil, nil, nil, fmt.Errorf("fcast: parse dh public key: %w", err)
	}
	var params dhParameter
	if _, err = asn1.Unmarshal(spki.Algorithm.Parameters.FullBytes, &params); err != nil {
		return nil, nil, nil, fmt.Errorf("fcast: parse dh public key params: %w", err)
	}
	y = new(big.Int)
	if _, err = asn1.Unmarshal(spki.PublicKey.RightAlign(), y); err != nil {
		return nil, nil, nil, fmt.Errorf("fcast: parse dh public value: %w", err)
	}
	return y, params.P, params.G, nil
}

func parseDHPrivateKey(der []byte) (x, p, g *big.Int, err error) {
	var pkcs8 struct {
		Version    int
		Algorithm  pkix.AlgorithmIdentifier
		PrivateKey []byte
	}
	if _, err = asn1.Unmarshal(der, &pkcs8); err != nil {
		return nil, nil, nil, fmt.Errorf("fcast: parse dh private key: %w", err)
	}
	var params dhParameter
	if _, err = asn1.Unmarshal(pkcs8.Algorithm.Parameters.FullBytes, &params); err != nil {
		return nil, nil, nil, fmt.Errorf("fcast: parse dh private key params: %w", err)
	}
	x = new(big.Int)
	if _, err = asn1.Unmarshal(pkcs8.PrivateKey, x); err != nil {
		return nil, nil, nil, fmt.Errorf("fcast: parse dh private value: %w", err)
	}
	return x, params.P, params.G, nil
}

// DecryptedMessage is the plaintext envelope carried inside an
// EncryptedMessage's blob once decrypted: the opcode of the message it
// wraps, plus its JSON body serialized as a string.
type DecryptedMessage struct {
	Opcode  uint64  `json:"opcode"`
	Message *string `json:"message,omitempty"`
}

// EncryptedMessage is the wire body of an Opcode=Encrypted packet.
type EncryptedMessage struct {
	Version uint64  `json:"version"`
	IV      *string `json:"iv,omitempty"`
	Blob    string  `json:"blob"`
}

// KeyExchangeMessage is the wire body of an Opcode=KeyExchange packet.
type KeyExchangeMessage struct {
	Version   uint64 `json:"version"`
	PublicKey string `json:"publicKey"`
}

// maxPendingEncrypted bounds the queue of Encrypted packets received before
// this side's AES key is ready: a misbehaving or out-of-order peer can't
// grow it unbounded, matching the reference implementation's cap.
const maxPendingEncrypted = 15

// EncryptedChannel tracks the state of the legacy (v1) DH/AES-CBC encrypted
// channel for one session: the local key pair, the derived AES key once
// available, and the two queues that hold messages while the handshake is
// still in flight.
type EncryptedChannel struct {
	keys *KeyPair
	aes  []byte

	// started is set once this side has both sent and received
	// StartEncryption; every outgoing message is wrapped from then on.
	started bool

	// waiting is set once a DH exchange has been initiated; from then until
	// StartEncryption is observed, outgoing user messages are queued rather
	// than sent plaintext.
	waiting bool

	// pendingEncrypted holds Encrypted packets received before the AES key
	// was available, FIFO with the oldest dropped past maxPendingEncrypted.
	pendingEncrypted []EncryptedMessage

	// pendingDecrypted holds outgoing messages queued before StartEncryption
	// was observed; they are encrypted and flushed once it arrives.
	pendingDecrypted []DecryptedMessage
}

// NewEncryptedChannel creates a channel with a fresh key pair, ready to
// initiate a key exchange.
func NewEncryptedChannel() (*EncryptedChannel, error) {
	kp, err := GenerateKeyPair()
	if err != nil {
		return nil, err
	}
	return &EncryptedChannel{keys: kp}, nil
}

// LocalPublicKeyBase64 returns this side's public key for a KeyExchange
// message.
func (c *EncryptedChannel) LocalPublicKeyBase64() (string, error) {
	return c.keys.PublicKeyBase64()
}

// BeginExchange marks the channel as awaiting the derived AES key, so that
// further outgoing messages are queued instead of sent in the clear.
func (c *EncryptedChannel) BeginExchange() {
	c.waiting = true
}

// CompleteExchange derives the AES key from a peer's public key. It must be
// called once, in response to the peer's KeyExchange message.
func (c *EncryptedChannel) CompleteExchange(peerPublicBase64 string) error {
	key, err := c.keys.SharedSecret(peerPublicBase64)
	if err != nil {
		return err
	}
	c.aes = key
	return nil
}

// Ready reports whether the AES key has been derived.
func (c *EncryptedChannel) Ready() bool { return c.aes != nil }

// Started reports whether StartEncryption has been observed locally.
func (c *EncryptedChannel) Started() bool { return c.started }

// MarkStarted flips the channel into the started state. The AES key must
// already be derived; otherwise it returns an error and the channel stays
// unstarted.
func (c *EncryptedChannel) MarkStarted() error {
	if c.aes == nil {
		return fmt.Errorf("fcast: cannot start encryption before the AES key is derived")
	}
	c.started = true
	return nil
}

// QueueOutgoing appends a message to the pending-decrypted queue for later
// flush once StartEncryption arrives.
func (c *EncryptedChannel) QueueOutgoing(msg DecryptedMessage) {
	c.pendingDecrypted = append(c.pendingDecrypted, msg)
}

// DrainOutgoing returns and clears the queued outgoing messages.
func (c *EncryptedChannel) DrainOutgoing() []DecryptedMessage {
	drained := c.pendingDecrypted
	c.pendingDecrypted = nil
	return drained
}

// QueueIncoming appends a received Encrypted message to the pre-key queue,
// dropping the oldest entry once the bound is exceeded.
func (c *EncryptedChannel) QueueIncoming(msg EncryptedMessage) {
	c.pendingEncrypted = append(c.pendingEncrypted, msg)
	if len(c.pendingEncrypted) > maxPendingEncrypted {
		c.pendingEncrypted = c.pendingEncrypted[1:]
	}
}

// DrainIncoming returns and clears the queued incoming Encrypted messages.
func (c *EncryptedChannel) DrainIncoming() []EncryptedMessage {
	drained := c.pendingEncrypted
	c.pendingEncrypted = nil
	return drained
}

// QueuesEmpty reports whether both pending queues are empty.
func (c *EncryptedChannel) QueuesEmpty() bool {
	return len(c.pendingEncrypted) == 0 && len(c.pendingDecrypted) == 0
}

// Encrypt wraps msg as an EncryptedMessage using this channel's AES key.
func (c *EncryptedChannel) Encrypt(msg DecryptedMessage) (EncryptedMessage, error) {
	if c.aes == nil {
		return EncryptedMessage{}, fmt.Errorf("fcast: encrypt before key exchange completed")
	}
	return encryptMessage(c.aes, msg)
}

// Decrypt unwraps an EncryptedMessage using this channel's AES key.
func (c *EncryptedChannel) Decrypt(enc EncryptedMessage) (DecryptedMessage, error) {
	if c.aes == nil {
		return DecryptedMessage{}, fmt.Errorf("fcast: decrypt before key exchange completed")
	}
	return decryptMessage(c.aes, enc)
}

func encryptMessage(key []byte, msg DecryptedMessage) (EncryptedMessage, error) {
	plaintext, err := json.Marshal(msg)
	if err != nil {
		return EncryptedMessage{}, err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return EncryptedMessage{}, fmt.Errorf("fcast: new aes cipher: %w", err)
	}
	iv := make([]byte, aes.BlockSize)
	if _, err := rand.Read(iv); err != nil {
		return EncryptedMessage{}, fmt.Errorf("fcast: generate iv: %w", err)
	}
	padded := pkcs7Pad(plaintext, aes.BlockSize)
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)

	ivB64 := base64.StdEncoding.EncodeToString(iv)
	return EncryptedMessage{
		Version: 1,
		IV:      &ivB64,
		Blob:    base64.StdEncoding.EncodeToString(ciphertext),
	}, nil
}

func decryptMessage(key []byte, enc EncryptedMessage) (DecryptedMessage, error) {
	if enc.IV == nil {
		return DecryptedMessage{}, fmt.Errorf("fcast: IV is required for decryption")
	}
	iv, err := base64.StdEncoding.DecodeString(*enc.IV)
	if err != nil {
		return DecryptedMessage{}, fmt.Errorf("fcast: decode iv: %w", err)
	}
	blob, err := base64.StdEncoding.DecodeString(enc.Blob)
	if err != nil {
		return DecryptedMessage{}, fmt.Errorf("fcast: decode blob: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return DecryptedMessage{}, fmt.Errorf("fcast: new aes cipher: %w", err)
	}
	if len(blob) == 0 || len(blob)%aes.BlockSize != 0 {
		return DecryptedMessage{}, fmt.Errorf("fcast: ciphertext is not a multiple of the block size")
	}
	plaintext := make([]byte, len(blob))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, blob)
	plaintext, err = pkcs7Unpad(plaintext, aes.BlockSize)
	if err != nil {
		return DecryptedMessage{}, err
	}

	var msg DecryptedMessage
	if err := json.Unmarshal(plaintext, &msg); err != nil {
		return DecryptedMessage{}, fmt.Errorf("fcast: unmarshal decrypted message: %w", err)
	}
	return msg, nil
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padLen := blockSize - len(data)%blockSize
	padding := bytes.Repeat([]byte{byte(padLen)}, padLen)
	return append(append([]byte{}, data...), padding...)
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	n := len(data)
	if n == 0 || n%blockSize != 0 {
		return nil, fmt.Errorf("fcast: invalid padded length")
	}
	padLen := int(data[n-1])
	if padLen == 0 || padLen > blockSize || padLen > n {
		return nil, fmt.Errorf("fcast: invalid pkcs7 padding")
	}
	if !bytes.Equal(data[n-padLen:], bytes.Repeat([]byte{byte(padLen)}, padLen)) {
		return nil, fmt.Errorf("fcast: invalid pkcs7 padding")
	}
	return data[:n-padLen], nil
}
