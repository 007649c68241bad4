package tool

import (
	"github.com/google/uuid"
	nanoid "github.com/jaevor/go-nanoid"
)

const tempRefAlphabet = "0123456789ABCDEFGHJKLMNPQRSTUVWXYZ"

// TempOrderRefPrefix marks references issued before the order exists.
const TempOrderRefPrefix = "TMP-"

var tempRefGen = func() func() string {
	gen, err := nanoid.CustomASCII(tempRefAlphabet, 12)
	if err != nil {
		panic(err)
	}
	return gen
}()

func GenerateUUIDV7() string {
	return uuid.Must(uuid.NewV7()).String()
}

// GenerateTempOrderRef returns a short, unambiguous reference such as TMP-7K2M9QXH4C1R.
func GenerateTempOrderRef() string {
	return TempOrderRefPrefix + tempRefGen()
}
