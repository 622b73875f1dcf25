package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rowjay/simple-minio-client/internal/cryptoutil"
)

// EncryptConfigFile seals a plain config file so that it can hold access and
// secret keys at rest. Load decrypts it with SMC_CONFIG_KEY.
func EncryptConfigFile(inputPath, outputPath, key string) error {
	if filepath.Clean(inputPath) == filepath.Clean(outputPath) {
		return fmt.Errorf("refusing to overwrite %s in place", inputPath)
	}
	plain, err := os.ReadFile(inputPath)
	if err != nil {
		return err
	}
	parsed, err := cryptoutil.ParseKey(key)
	if err != nil {
		return err
	}
	ciphertext, err := cryptoutil.EncryptConfig(plain, parsed)
	if err != nil {
		return err
	}
	return os.WriteFile(outputPath, ciphertext, 0o600)
}
