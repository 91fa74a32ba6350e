package config

// CryptoConfig configures the crypto keyring (C1). MasterKeyB64 is the
// single secret read from outside persistent storage; the process refuses
// to start when it is absent (enforced in pkg/crypto, not here).
type CryptoConfig struct {
	MasterKeyB64 string
}

func loadCryptoConfig() CryptoConfig {
	return CryptoConfig{
		MasterKeyB64: getEnv("PIERRE_MASTER_KEY", ""),
	}
}
