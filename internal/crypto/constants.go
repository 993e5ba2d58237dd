package crypto

const (
	HashSize    = 32
	AddressSize = 20
)
