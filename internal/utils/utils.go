package utils

import (
	"fmt"
	"hash/crc32"
	"os"
)

// CalculateHash generates a CRC32 hash of the data
func CalculateHash(data []byte) string {
	table := crc32.MakeTable(crc32.IEEE)
	return fmt.Sprintf("%08x", crc32.Checksum(data, table))
}

// HashFile returns the CRC32 hash of a file's content
func HashFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return CalculateHash(data), nil
}
