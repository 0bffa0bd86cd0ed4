// Patch the body heat meter of a managed game module
//
// The meter's SetValue method receives a temperature in Fahrenheit. This
// package finds that method in Assembly-CSharp.dll, checks that its IL is the
// shape it expects, and splices in the conversion to Celsius:
//
//	ldc.r4 32
//	sub
//	ldc.r4 1.8
//	div
//
// The module is backed up next to itself before it is rewritten. Running the
// patch a second time recognizes the spliced body and leaves the file alone.
//
// Limitations:
//   - The method is recognized by instruction count and one anchor
//     instruction, so a different build of the game may be misjudged
//   - Only IL-only modules can be rewritten
//   - A body that no longer fits is moved to the end of its section, which
//     fails for modules with data after their last section (signed files)
//   - Strong name signatures are not updated
package ilpatch
