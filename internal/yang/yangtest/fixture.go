// Package yangtest builds small hand-made schema contexts for tests.
package yangtest

import "github.com/bhandras/netconsole/internal/yang"

// Namespaces of the fixture modules.
const (
	ExampleNS = "urn:example:net"
	ExtNS     = "urn:example:ext"
	IdentNS   = "urn:example:ident"
)

// Context returns a fresh fixture:
//
//	module net (prefix n)
//	  container interfaces
//	    list interface [name] ordered-by user
//	      leaf name        string
//	      leaf enabled     boolean default "true"
//	      leaf mtu         mtu-type (typedef default "1500")
//	      leaf type        identityref
//	      leaf-list address  ordered-by user
//	      container stats  config false
//	        leaf in-octets uint64
//	    leaf-list dns  (system ordered)
//	    leaf hostname string
//	  container system presence
//	    leaf contact string
//	module ext (prefix x)
//	  augments /net:interfaces with leaf description
//	  top-level container settings
//	    leaf mode string default "auto"
//	module ident (prefix id): identities only
func Context() *yang.Context {
	net := &yang.Module{Name: "net", Revision: "2024-01-01", Namespace: ExampleNS, Prefix: "n"}
	ext := &yang.Module{Name: "ext", Revision: "2024-02-01", Namespace: ExtNS, Prefix: "x"}
	ident := &yang.Module{Name: "ident", Namespace: IdentNS, Prefix: "id"}

	interfaces := net.AddTop(&yang.SchemaNode{
		Kind: yang.KindContainer, Name: "interfaces", Config: true,
		Description: "Interface configuration.",
	})
	iface := interfaces.AddChild(&yang.SchemaNode{
		Kind: yang.KindList, Name: "interface", Config: true,
		Keys: []string{"name"}, UserOrdered: true,
	})
	iface.AddChild(leaf("name", "string", true))
	enabled := iface.AddChild(leaf("enabled", "boolean", true))
	enabled.Default, enabled.HasDefault = "true", true
	mtu := iface.AddChild(leaf("mtu", "uint16", true))
	mtu.Type = &yang.TypeInfo{
		Name: "mtu-type", Base: "uint16",
		Parent: &yang.TypeInfo{Name: "uint16", Base: "uint16", Default: "1500", HasDefault: true},
	}
	iface.AddChild(leaf("type", yang.BaseIdentityRef, true))
	iface.AddChild(&yang.SchemaNode{
		Kind: yang.KindLeafList, Name: "address", Config: true, UserOrdered: true,
		Type: &yang.TypeInfo{Name: "string", Base: "string"},
	})
	stats := iface.AddChild(&yang.SchemaNode{Kind: yang.KindContainer, Name: "stats"})
	stats.AddChild(leaf("in-octets", "uint64", false))

	interfaces.AddChild(&yang.SchemaNode{
		Kind: yang.KindLeafList, Name: "dns", Config: true,
		Type: &yang.TypeInfo{Name: "string", Base: "string"},
	})
	interfaces.AddChild(leaf("hostname", "string", true))

	system := net.AddTop(&yang.SchemaNode{
		Kind: yang.KindContainer, Name: "system", Config: true, Presence: true,
	})
	system.AddChild(leaf("contact", "string", true))

	desc := leaf("description", "string", true)
	desc.Module = ext
	interfaces.AddChild(desc)

	settings := ext.AddTop(&yang.SchemaNode{Kind: yang.KindContainer, Name: "settings", Config: true})
	mode := settings.AddChild(leaf("mode", "string", true))
	mode.Default, mode.HasDefault = "auto", true

	return yang.NewContext(net, ext, ident)
}

func leaf(name, base string, config bool) *yang.SchemaNode {
	return &yang.SchemaNode{
		Kind:   yang.KindLeaf,
		Name:   name,
		Config: config,
		Type:   &yang.TypeInfo{Name: base, Base: base},
	}
}

// DataXML is a <get> reply body matching Context.
const DataXML = `<data xmlns="urn:ietf:params:xml:ns:netconf:base:1.0">
  <interfaces xmlns="urn:example:net" xmlns:id="urn:example:ident">
    <interface>
      <name>eth0</name>
      <enabled>true</enabled>
      <mtu>9000</mtu>
      <type>id:ethernet</type>
      <address>10.0.0.1</address>
      <address>10.0.0.2</address>
      <stats><in-octets>42</in-octets></stats>
    </interface>
    <dns>1.1.1.1</dns>
    <interface>
      <name>eth1</name>
      <enabled>false</enabled>
      <mtu>1500</mtu>
    </interface>
    <hostname>edge</hostname>
    <dns>8.8.8.8</dns>
    <description xmlns="urn:example:ext">core</description>
    <unknown-thing><deep>x</deep></unknown-thing>
  </interfaces>
  <settings xmlns="urn:example:ext"><mode>auto</mode></settings>
</data>`
