package binary

import "github.com/ssargent/rbxdom/pkg/types"

// normals are the axis unit vectors indexed by normal id.
var normals = [6]types.Vector3{
	{X: 1}, {Y: 1}, {Z: 1},
	{X: -1}, {Y: -1}, {Z: -1},
}

func normalID(v types.Vector3) (byte, bool) {
	for id, n := range normals {
		if v == n {
			return byte(id), true
		}
	}
	return 0, false
}

func cross(a, b types.Vector3) types.Vector3 {
	// Adding zero turns -0 into 0 so results compare equal to normals.
	return types.Vector3{
		X: a.Y*b.Z - a.Z*b.Y + 0,
		Y: a.Z*b.X - a.X*b.Z + 0,
		Z: a.X*b.Y - a.Y*b.X + 0,
	}
}

// basicRotationID returns the one byte id of an axis-aligned orientation.
// Ids are 6*right + up + 1, with right and up taken from the matrix columns.
func basicRotationID(m types.Matrix3) (byte, bool) {
	cols := m.Transpose()
	right, ok := normalID(cols.X)
	if !ok {
		return 0, false
	}
	up, ok := normalID(cols.Y)
	if !ok {
		return 0, false
	}
	id := 6*right + up + 1
	if built, ok := matrixFromRotationID(id); !ok || built != m {
		return 0, false
	}
	return id, true
}

func matrixFromRotationID(id byte) (types.Matrix3, bool) {
	if id == 0 || id > 36 {
		return types.Matrix3{}, false
	}
	right, up := normals[(id-1)/6], normals[(id-1)%6]
	back := cross(right, up)
	if _, ok := normalID(back); !ok {
		return types.Matrix3{}, false
	}
	cols := types.Matrix3{X: right, Y: up, Z: back}
	return cols.Transpose(), true
}
