// Package gateway submits orders produced by the reconciliation pipeline
// to the venue CLOB over HMAC-signed requests, and reports back fills/rejections as
// OrderAck events. Both signing and submission are out-of-scope internals
// per spec.md §1/§2, but the seam is grounded verbatim on the teacher's
// internal/exchange package — EIP-712 L1 signing, HMAC L2 auth, token
// bucket rate limiting, and resty retry all carry over unchanged, since
// the venue itself (Polymarket) is the same across teacher and spec.
package gateway

import (
	"crypto/ecdsa"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethmath "github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"binaryedge/internal/config"
)

// Credentials holds the L2 API key triplet used for HMAC-signed trading
// requests.
type Credentials struct {
	ApiKey     string
	Secret     string
	Passphrase string
}

// Auth handles EIP-712 L1 signing (used once, to derive L2 credentials;
// orders themselves are not signed with it) and HMAC-SHA256 L2 request
// signing.
type Auth struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
	funder     common.Address
	chainID    *big.Int
	creds      Credentials
}

// NewAuth builds an Auth from wallet configuration.
func NewAuth(cfg config.WalletConfig) (*Auth, error) {
	keyHex := cfg.PrivateKey
	if len(keyHex) >= 2 && keyHex[:2] == "0x" {
		keyHex = keyHex[2:]
	}

	privateKey, err := crypto.HexToECDSA(keyHex)
	if err != nil {
		return nil, fmt.Errorf("parse wallet private key: %w", err)
	}

	address := crypto.PubkeyToAddress(privateKey.PublicKey)
	funder := address
	if cfg.FunderAddress != "" {
		funder = common.HexToAddress(cfg.FunderAddress)
	}

	return &Auth{
		privateKey: privateKey,
		address:    address,
		funder:     funder,
		chainID:    big.NewInt(cfg.ChainID),
		creds: Credentials{
			ApiKey:     cfg.ApiKey,
			Secret:     cfg.Secret,
			Passphrase: cfg.Passphrase,
		},
	}, nil
}

// Address is the signer's EOA address.
func (a *Auth) Address() common.Address { return a.address }

// FunderAddress is the proxy/funder wallet orders are placed on behalf of.
func (a *Auth) FunderAddress() common.Address { return a.funder }

// HasL2Credentials reports whether L2 HMAC credentials are configured.
func (a *Auth) HasL2Credentials() bool {
	return a.creds.ApiKey != "" && a.creds.Secret != "" && a.creds.Passphrase != ""
}

// SetCredentials installs derived L2 credentials.
func (a *Auth) SetCredentials(c Credentials) { a.creds = c }

// L1Headers signs a ClobAuth EIP-712 message, used once to derive L2 keys.
func (a *Auth) L1Headers(nonce int) (map[string]string, error) {
	timestamp := strconv.FormatInt(time.Now().Unix(), 10)
	sig, err := a.signClobAuth(timestamp, nonce)
	if err != nil {
		return nil, fmt.Errorf("sign clob auth: %w", err)
	}
	return map[string]string{
		"POLY_ADDRESS":   a.address.Hex(),
		"POLY_SIGNATURE": sig,
		"POLY_TIMESTAMP": timestamp,
		"POLY_NONCE":     strconv.Itoa(nonce),
	}, nil
}

// L2Headers signs "timestamp+method+path[+body]" with HMAC-SHA256.
func (a *Auth) L2Headers(method, path, body string) (map[string]string, error) {
	timestamp := strconv.FormatInt(time.Now().Unix(), 10)
	sig, err := a.buildHMAC(timestamp, method, path, body)
	if err != nil {
		return nil, fmt.Errorf("build hmac: %w", err)
	}
	return map[string]string{
		"POLY_ADDRESS":    a.address.Hex(),
		"POLY_SIGNATURE":  sig,
		"POLY_TIMESTAMP":  timestamp,
		"POLY_API_KEY":    a.creds.ApiKey,
		"POLY_PASSPHRASE": a.creds.Passphrase,
	}, nil
}

func (a *Auth) signClobAuth(timestamp string, nonce int) (string, error) {
	sig, err := a.SignTypedData(
		&apitypes.TypedDataDomain{
			Name:    "ClobAuthDomain",
			Version: "1",
			ChainId: (*ethmath.HexOrDecimal256)(new(big.Int).Set(a.chainID)),
		},
		apitypes.Types{
			"EIP712Domain": {
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
			},
			"ClobAuth": {
				{Name: "address", Type: "address"},
				{Name: "timestamp", Type: "string"},
				{Name: "nonce", Type: "uint256"},
				{Name: "message", Type: "string"},
			},
		},
		apitypes.TypedDataMessage{
			"address":   a.address.Hex(),
			"timestamp": timestamp,
			"nonce":     fmt.Sprintf("%d", nonce),
			"message":   "This message attests that I control the given wallet",
		},
		"ClobAuth",
	)
	if err != nil {
		return "", fmt.Errorf("sign: %w", err)
	}
	return "0x" + common.Bytes2Hex(sig), nil
}

// SignTypedData signs EIP-712 typed data and normalizes V to 27/28.
func (a *Auth) SignTypedData(domain *apitypes.TypedDataDomain, typesDef apitypes.Types, message apitypes.TypedDataMessage, primaryType string) ([]byte, error) {
	typedData := apitypes.TypedData{
		Types:       typesDef,
		PrimaryType: primaryType,
		Domain:      *domain,
		Message:     message,
	}

	hash, _, err := apitypes.TypedDataAndHash(typedData)
	if err != nil {
		return nil, fmt.Errorf("typed data hash: %w", err)
	}

	sig, err := crypto.Sign(hash, a.privateKey)
	if err != nil {
		return nil, fmt.Errorf("sign typed data: %w", err)
	}

	if sig[64] < 27 {
		sig[64] += 27
	}
	return sig, nil
}

func (a *Auth) buildHMAC(timestamp, method, path, body string) (string, error) {
	decoders := []*base64.Encoding{
		base64.URLEncoding,
		base64.RawURLEncoding,
		base64.StdEncoding,
		base64.RawStdEncoding,
	}

	var secretBytes []byte
	var err error
	for _, dec := range decoders {
		secretBytes, err = dec.DecodeString(a.creds.Secret)
		if err == nil {
			break
		}
	}
	if err != nil {
		return "", fmt.Errorf("decode secret: %w", err)
	}

	message := timestamp + method + path + body
	mac := hmac.New(sha256.New, secretBytes)
	mac.Write([]byte(message))
	return base64.URLEncoding.EncodeToString(mac.Sum(nil)), nil
}
