// Package prompt owns the system prompts that govern a conversation.
package prompt

import (
	"fmt"
	"strings"
)

// Profile selects the tone/register of the assistant for a session.
type Profile int

const (
	// Empathetic is the default and the fallback for unknown names.
	Empathetic Profile = iota
	Professional
	Casual
	Brief
)

// Profiles lists every profile in display order.
var Profiles = []Profile{Empathetic, Professional, Casual, Brief}

func (p Profile) String() string {
	switch p {
	case Empathetic:
		return "empathetic"
	case Professional:
		return "professional"
	case Casual:
		return "casual"
	case Brief:
		return "brief"
	default:
		return fmt.Sprintf("profile(%d)", int(p))
	}
}

// Parse resolves a profile name. Unknown names yield Empathetic and false.
func Parse(name string) (Profile, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "empathetic", "":
		return Empathetic, true
	case "professional":
		return Professional, true
	case "casual":
		return Casual, true
	case "brief":
		return Brief, true
	default:
		return Empathetic, false
	}
}

const base = "Eres Mindly, un chatbot empático, accesible y profesional. " +
	"Tu objetivo es ayudar a los usuarios a encontrar información clara y confiable sobre psicología. " +
	"Si notas que alguien necesita apoyo emocional urgente, sugiérele que busque ayuda profesional inmediata."

// System returns the base system prompt of the profile.
func (p Profile) System() string {
	switch p {
	case Professional:
		return base + " Usa un registro formal y preciso, cita conceptos psicológicos por su nombre y evita el tuteo."
	case Casual:
		return base + " Habla de forma cercana y relajada, como un amigo que escucha, sin usar jerga técnica."
	case Brief:
		return base + " Responde en pocas frases, directo al punto, con como máximo tres sugerencias concretas."
	case Empathetic:
		fallthrough
	default:
		return base + " Responde de forma cercana, sin usar jerga técnica, y adapta tus respuestas según la intención del usuario."
	}
}

// Builder assembles the single system message sent with every completion.
type Builder struct {
	fragments []string
}

// NewBuilder returns a builder that appends the given fragments (for example
// prompts discovered from MCP servers) after the profile prompt.
func NewBuilder(fragments ...string) *Builder {
	var kept []string
	for _, f := range fragments {
		if f = strings.TrimSpace(f); f != "" {
			kept = append(kept, f)
		}
	}
	return &Builder{fragments: kept}
}

// System returns the system prompt for profile, personalised with userName when set.
func (b *Builder) System(p Profile, userName string) string {
	var sb strings.Builder
	sb.WriteString(p.System())
	if name := strings.TrimSpace(userName); name != "" {
		fmt.Fprintf(&sb, " El nombre del usuario es %s. Dirígete a él por su nombre cuando sea apropiado para crear una conexión más cercana y empática.", name)
	}
	for _, f := range b.fragments {
		sb.WriteString("\n\n")
		sb.WriteString(f)
	}
	return sb.String()
}

// Welcome is shown before the first message of a new conversation.
func Welcome(userName string) string {
	greeting := "¡Hola!"
	if name := strings.TrimSpace(userName); name != "" {
		greeting = fmt.Sprintf("¡Hola, **%s**!", name)
	}
	return greeting + ` Soy **Mindly**, tu compañero de bienestar mental.

Estoy aquí para ayudarte con:
- Manejo de emociones y estrés
- Técnicas de relajación y mindfulness
- Información sobre psicología
- Apoyo en momentos difíciles

¿En qué puedo ayudarte hoy?`
}
