/*
Package tool locates the Node-ecosystem programs m3-stack hands work off to, such as vite, rollup, drizzle-kit, the
better-auth CLI and node itself. It can find tools from different sources and report which version was found.

# Details
Every tool is described by a Spec: the name of its executable and, optionally, the npm package that provides it.

The package tries every registered provider in registration order. The first provider that can successfully locate the
tool is used. Providers that are cheap and precise, like the project's own node_modules/.bin, should be registered
first; broad fallbacks such as running the package through npx should come last. If no provider can locate the tool,
the command that needed it fails.
*/
package tool
