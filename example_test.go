package ilpatch_test

import (
	"fmt"

	"github.com/pboyd/ilpatch"
	"github.com/pboyd/ilpatch/cil"
)

func ExamplePlan_Apply() {
	body := &cil.MethodBody{Instructions: []*cil.Instruction{
		cil.Create(cil.Ldarg1, nil),
		cil.Create(cil.Call, cil.Token(0x0a000001)),
		cil.Create(cil.Ret, nil),
	}}

	plan := ilpatch.Plan{
		{0, cil.Create(cil.LdcR4, float32(32))},
		{0, cil.Create(cil.Sub, nil)},
		{0, cil.Create(cil.LdcR4, float32(1.8))},
		{0, cil.Create(cil.Div, nil)},
	}
	plan.Apply(body)
	body.Encode()

	for _, ins := range body.Instructions {
		fmt.Println(ins)
	}
	// Output:
	// IL_0000: ldarg.1
	// IL_0001: ldc.r4 32
	// IL_0006: sub
	// IL_0007: ldc.r4 1.8
	// IL_000c: div
	// IL_000d: call 0x0a000001
	// IL_0012: ret
}

func ExampleConversionProbe() {
	body := heatMeter()
	ilpatch.CelsiusPlan().Apply(body)

	c, _ := ilpatch.ConversionProbe(body)
	fmt.Printf("%.1f°F is %.1f°C\n", ilpatch.ProbeFahrenheit, c)
	// Output: 98.6°F is 37.0°C
}
