package release

import (
	"bufio"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// DefaultKeyBits is the RSA modulus size used by GenerateKeyPairPEM callers.
const DefaultKeyBits = 4096

// ErrChecksumMismatch is returned when an archive does not match its
// recorded digest.
var ErrChecksumMismatch = errors.New("checksum mismatch")

// GenerateKeyPairPEM returns a new RSA private key (PKCS#1) and its public
// key (PKIX), both PEM encoded.
func GenerateKeyPairPEM(bits int) (privKeyPEM, pubKeyPEM []byte, err error) {
	privateKey, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, nil, fmt.Errorf("generate RSA key: %w", err)
	}
	privKeyPEM = pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(privateKey)})
	pubKeyBytes, err := x509.MarshalPKIXPublicKey(&privateKey.PublicKey)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal public key: %w", err)
	}
	pubKeyPEM = pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubKeyBytes})
	return privKeyPEM, pubKeyPEM, nil
}

// LoadPrivateKey reads a PEM encoded RSA private key in PKCS#8 or PKCS#1 form.
func LoadPrivateKey(path string) (*rsa.PrivateKey, error) {
	block, err := readPEM(path)
	if err != nil {
		return nil, err
	}
	if key, err := x509.ParsePKCS8PrivateKey(block.Bytes); err == nil {
		rsaKey, ok := key.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("key in %s is not an RSA private key", path)
		}
		return rsaKey, nil
	}
	key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse private key from %s: %w", path, err)
	}
	return key, nil
}

// LoadPublicKey reads a PEM encoded PKIX RSA public key.
func LoadPublicKey(path string) (*rsa.PublicKey, error) {
	block, err := readPEM(path)
	if err != nil {
		return nil, err
	}
	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse public key from %s: %w", path, err)
	}
	rsaPub, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("key from %s is not an RSA public key", path)
	}
	return rsaPub, nil
}

func readPEM(path string) (*pem.Block, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read key: %w", err)
	}
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("no PEM block in %s", path)
	}
	return block, nil
}

var pssOptions = &rsa.PSSOptions{SaltLength: rsa.PSSSaltLengthAuto, Hash: crypto.SHA256}

// SignFile writes an RSA-PSS SHA-256 signature of path to path+".sig".
func SignFile(path string, key *rsa.PrivateKey) (string, error) {
	digest, err := fileDigest(path)
	if err != nil {
		return "", err
	}
	sig, err := rsa.SignPSS(rand.Reader, key, crypto.SHA256, digest, pssOptions)
	if err != nil {
		return "", fmt.Errorf("sign %s: %w", path, err)
	}
	sigPath := path + SignatureExt
	if err := os.WriteFile(sigPath, sig, 0644); err != nil {
		return "", err
	}
	return sigPath, nil
}

// VerifySignature checks path against the signature stored in path+".sig".
func VerifySignature(path string, pub *rsa.PublicKey) error {
	sig, err := os.ReadFile(path + SignatureExt)
	if err != nil {
		return fmt.Errorf("read signature: %w", err)
	}
	digest, err := fileDigest(path)
	if err != nil {
		return err
	}
	if err := rsa.VerifyPSS(pub, crypto.SHA256, digest, sig, pssOptions); err != nil {
		return fmt.Errorf("signature of %s: %w", filepath.Base(path), err)
	}
	return nil
}

// WriteChecksum writes "<hex digest>  <file name>" to path+".sha256", the
// format sha256sum reads.
func WriteChecksum(path string) (string, error) {
	digest, err := fileDigest(path)
	if err != nil {
		return "", err
	}
	sum := hex.EncodeToString(digest)
	line := sum + "  " + filepath.Base(path) + "\n"
	if err := os.WriteFile(path+ChecksumExt, []byte(line), 0644); err != nil {
		return "", err
	}
	return sum, nil
}

// VerifyChecksum compares path with the digest recorded in path+".sha256".
func VerifyChecksum(path string) error {
	f, err := os.Open(path + ChecksumExt)
	if err != nil {
		return fmt.Errorf("read checksum: %w", err)
	}
	defer f.Close()
	line, err := bufio.NewReader(f).ReadString('\n')
	if err != nil && err != io.EOF {
		return err
	}
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return fmt.Errorf("empty checksum file for %s", filepath.Base(path))
	}
	digest, err := fileDigest(path)
	if err != nil {
		return err
	}
	if got := hex.EncodeToString(digest); !strings.EqualFold(got, fields[0]) {
		return fmt.Errorf("%w: %s has %s, expected %s", ErrChecksumMismatch, filepath.Base(path), got, fields[0])
	}
	return nil
}

func fileDigest(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return nil, fmt.Errorf("hash %s: %w", path, err)
	}
	return h.Sum(nil), nil
}
