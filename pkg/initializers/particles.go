package initializers

// ParticlesConfig is the particles.js configuration for the page background
type ParticlesConfig struct {
	Particles     ParticleSettings `json:"particles" yaml:"particles"`
	Interactivity Interactivity    `json:"interactivity" yaml:"interactivity"`
}

// ParticleSettings describes how particles look and move
type ParticleSettings struct {
	Number struct {
		Value   int `json:"value" yaml:"value"`
		Density struct {
			Enable    bool `json:"enable" yaml:"enable"`
			ValueArea int  `json:"value_area" yaml:"value_area"`
		} `json:"density" yaml:"density"`
	} `json:"number" yaml:"number"`
	Color struct {
		Value string `json:"value" yaml:"value"`
	} `json:"color" yaml:"color"`
	Shape struct {
		Type string `json:"type" yaml:"type"`
	} `json:"shape" yaml:"shape"`
	Opacity    RandomValue `json:"opacity" yaml:"opacity"`
	Size       RandomValue `json:"size" yaml:"size"`
	LineLinked struct {
		Enable   bool    `json:"enable" yaml:"enable"`
		Distance int     `json:"distance" yaml:"distance"`
		Color    string  `json:"color" yaml:"color"`
		Opacity  float64 `json:"opacity" yaml:"opacity"`
		Width    int     `json:"width" yaml:"width"`
	} `json:"line_linked" yaml:"line_linked"`
	Move struct {
		Enable    bool   `json:"enable" yaml:"enable"`
		Speed     int    `json:"speed" yaml:"speed"`
		Direction string `json:"direction" yaml:"direction"`
		Random    bool   `json:"random" yaml:"random"`
		Straight  bool   `json:"straight" yaml:"straight"`
		OutMode   string `json:"out_mode" yaml:"out_mode"`
		Bounce    bool   `json:"bounce" yaml:"bounce"`
	} `json:"move" yaml:"move"`
}

// RandomValue is a number particles.js may randomize per particle
type RandomValue struct {
	Value  float64 `json:"value" yaml:"value"`
	Random bool    `json:"random" yaml:"random"`
}

// Interactivity maps pointer events to particle modes
type Interactivity struct {
	DetectOn string `json:"detect_on" yaml:"detect_on"`
	Events   struct {
		OnHover Mode `json:"onhover" yaml:"onhover"`
		OnClick Mode `json:"onclick" yaml:"onclick"`
		Resize  bool `json:"resize" yaml:"resize"`
	} `json:"events" yaml:"events"`
}

// Mode enables a pointer event and names the effect it triggers
type Mode struct {
	Enable bool   `json:"enable" yaml:"enable"`
	Mode   string `json:"mode" yaml:"mode"`
}

// DefaultParticles is the red, slowly drifting background of the site
func DefaultParticles() ParticlesConfig {
	var c ParticlesConfig
	p := &c.Particles
	p.Number.Value = 30
	p.Number.Density.Enable = true
	p.Number.Density.ValueArea = 800
	p.Color.Value = "#d32f2f"
	p.Shape.Type = "circle"
	p.Opacity = RandomValue{Value: 0.5, Random: true}
	p.Size = RandomValue{Value: 3, Random: true}
	p.LineLinked.Enable = true
	p.LineLinked.Distance = 150
	p.LineLinked.Color = "#d32f2f"
	p.LineLinked.Opacity = 0.2
	p.LineLinked.Width = 1
	p.Move.Enable = true
	p.Move.Speed = 2
	p.Move.Direction = "none"
	p.Move.Random = true
	p.Move.OutMode = "out"

	c.Interactivity.DetectOn = "canvas"
	c.Interactivity.Events.OnHover = Mode{Enable: true, Mode: "repulse"}
	c.Interactivity.Events.OnClick = Mode{Enable: true, Mode: "push"}
	c.Interactivity.Events.Resize = true
	return c
}
