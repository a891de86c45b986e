package domain

// TraitName identifica una dimension del perfil cognitivo del aprendiz.
// El conjunto es cerrado: claves fuera de la enumeracion no crean rasgos nuevos.
type TraitName string

const (
	TraitPrecision            TraitName = "precision"
	TraitConfidence           TraitName = "confidence"
	TraitAnalyticalDepth      TraitName = "analytical_depth"
	TraitCuriosity            TraitName = "curiosity"
	TraitMetacognition        TraitName = "metacognition"
	TraitCognitiveFlexibility TraitName = "cognitive_flexibility"
	TraitPatternRecognition   TraitName = "pattern_recognition"
	TraitAttentionConsistency TraitName = "attention_consistency"
)

// AllTraits enumera las dimensiones en orden estable.
var AllTraits = []TraitName{
	TraitPrecision,
	TraitConfidence,
	TraitAnalyticalDepth,
	TraitCuriosity,
	TraitMetacognition,
	TraitCognitiveFlexibility,
	TraitPatternRecognition,
	TraitAttentionConsistency,
}

// NeutralTraitValue es el valor base cuando no hay evidencia acumulada.
const NeutralTraitValue = 0.5

// DefaultKalmanGain aplica a rasgos sin ganancia configurada.
const DefaultKalmanGain = 0.20

// kalmanGains define la velocidad de adaptacion por rasgo: los rasgos volatiles
// (curiosidad, confianza) convergen rapido y los estables (precision) lento.
var kalmanGains = map[TraitName]float64{
	TraitCuriosity:            0.35,
	TraitConfidence:           0.30,
	TraitMetacognition:        0.25,
	TraitCognitiveFlexibility: 0.25,
	TraitAnalyticalDepth:      0.22,
	TraitPatternRecognition:   0.20,
	TraitAttentionConsistency: 0.18,
	TraitPrecision:            0.15,
}

// KalmanGain devuelve la ganancia de adaptacion configurada para el rasgo.
func KalmanGain(trait TraitName) float64 {
	if g, ok := kalmanGains[trait]; ok {
		return g
	}
	return DefaultKalmanGain
}

// IsValid reporta si el nombre pertenece a la enumeracion cerrada.
func (t TraitName) IsValid() bool {
	_, ok := kalmanGains[t]
	return ok
}

// ParseTraitName normaliza un nombre externo; ok=false si no es un rasgo conocido.
func ParseTraitName(s string) (TraitName, bool) {
	t := TraitName(s)
	if t.IsValid() {
		return t, true
	}
	return "", false
}

// TraitVector es el estado persistente por aprendiz: rasgo -> valor en [0,1].
// Rasgos no seteados valen NeutralTraitValue.
type TraitVector map[TraitName]float64

// NewNeutralTraitVector crea un vector con todos los rasgos en 0.5.
func NewNeutralTraitVector() TraitVector {
	v := make(TraitVector, len(AllTraits))
	for _, t := range AllTraits {
		v[t] = NeutralTraitValue
	}
	return v
}

// Get devuelve el valor del rasgo, o el neutral si no esta seteado.
func (v TraitVector) Get(trait TraitName) float64 {
	if v == nil {
		return NeutralTraitValue
	}
	if val, ok := v[trait]; ok {
		return ClampUnit(val)
	}
	return NeutralTraitValue
}

// Set asigna el valor acotado a [0,1]; ignora rasgos fuera de la enumeracion.
func (v TraitVector) Set(trait TraitName, value float64) {
	if v == nil || !trait.IsValid() {
		return
	}
	v[trait] = ClampUnit(value)
}

// Clone copia el vector para mutarlo sin tocar el original.
func (v TraitVector) Clone() TraitVector {
	out := make(TraitVector, len(v))
	for t, val := range v {
		out[t] = val
	}
	return out
}

// ClampUnit acota un valor al rango [0,1].
func ClampUnit(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
