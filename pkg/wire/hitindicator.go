package wire

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/x448/float16"

	"github.com/killindicator/extension/pkg/core"
)

// HitIndicatorSize is the fixed payload width of a hit indicator.
const HitIndicatorSize = 2 + 1 + 1 + 1 + 3*2 + 1

// halfRelErr is the unit roundoff of IEEE 754 binary16.
const halfRelErr = 1.0 / 2048

// PositionEpsilon is the largest per-axis error a coordinate of magnitude v
// picks up on the wire. Subnormal halves are covered by the absolute term.
func PositionEpsilon(v float32) float32 {
	return float32(math.Abs(float64(v)))*halfRelErr + 6e-8
}

// EncodeHitIndicator writes the payload of a hit indicator.
func EncodeHitIndicator(m core.HitIndicator) ([]byte, error) {
	if m.Target == math.MaxUint16 {
		return nil, fmt.Errorf("entity id %d has no wire representation", m.Target)
	}

	b := make([]byte, 0, HitIndicatorSize)
	b = binary.LittleEndian.AppendUint16(b, uint16(m.Target)+1)
	b = append(b, m.Limb, boolByte(m.HitWeakspot), boolByte(m.WillDie))
	b = appendHalf(b, m.Position.X)
	b = appendHalf(b, m.Position.Y)
	b = appendHalf(b, m.Position.Z)
	b = append(b, boolByte(m.HitArmor))
	return b, nil
}

// DecodeHitIndicator reads a hit indicator payload.
func DecodeHitIndicator(p []byte) (core.HitIndicator, error) {
	if len(p) < HitIndicatorSize {
		return core.HitIndicator{}, fmt.Errorf("%w: hit indicator needs %d bytes, got %d", ErrMalformed, HitIndicatorSize, len(p))
	}

	keyPlusOne := binary.LittleEndian.Uint16(p[0:2])
	if keyPlusOne == 0 {
		return core.HitIndicator{}, fmt.Errorf("%w: empty target", ErrMalformed)
	}

	return core.HitIndicator{
		Target:      core.EntityID(keyPlusOne - 1),
		Limb:        p[2],
		HitWeakspot: p[3] != 0,
		WillDie:     p[4] != 0,
		Position: core.Vec3{
			X: readHalf(p[5:7]),
			Y: readHalf(p[7:9]),
			Z: readHalf(p[9:11]),
		},
		HitArmor: p[11] != 0,
	}, nil
}

// MarshalHitIndicator returns a complete framed hit indicator packet.
func MarshalHitIndicator(m core.HitIndicator) ([]byte, error) {
	payload, err := EncodeHitIndicator(m)
	if err != nil {
		return nil, err
	}
	return EncodeEnvelope(TypeHitIndicator, payload), nil
}

// UnmarshalHitIndicator decodes a framed packet. Foreign packets return an
// error satisfying IsForeign.
func UnmarshalHitIndicator(b []byte) (core.HitIndicator, error) {
	env, err := DecodeEnvelope(b)
	if err != nil {
		return core.HitIndicator{}, err
	}
	return DecodeHitIndicator(env.Payload)
}

func boolByte(v bool) byte {
	if v {
		return 1
	}
	return 0
}

func appendHalf(b []byte, v float32) []byte {
	return binary.LittleEndian.AppendUint16(b, float16.Fromfloat32(v).Bits())
}

func readHalf(b []byte) float32 {
	return float16.Frombits(binary.LittleEndian.Uint16(b)).Float32()
}
