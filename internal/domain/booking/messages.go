package booking

// Bot-facing texts. Formatting verbs are filled by the service.
const (
	msgBadDateTime     = "⚠️ Error: El formato de fecha o hora es inválido."
	msgOnTheHour       = "⚠️ Solo se permiten horarios en punto (por ejemplo: 10:00, 11:00, 12:00)."
	msgPastBooking     = "❌ No puedes agendar citas para fechas pasadas.\n\n🔍 Para agendar una cita, primero consulta la disponibilidad para hoy o fechas futuras."
	msgSundayBooking   = "🚫 No hay servicio los domingos. Por favor selecciona otro día (Lunes a Sábado)."
	msgCalendarMissing = "🚫 Error: El calendario solicitado no fue encontrado."
	msgServiceMissing  = "🚫 Error: El servicio solicitado no fue encontrado."
	msgLeadTime        = "🤚 Debes %s con al menos %s de anticipación. No puedes reservar para las %s de hoy.\n\n📅 El siguiente día hábil es: %s (%s)\n\n🔍 Te recomiendo consultar la disponibilidad para esa fecha antes de %s tu cita."
	msgClosedDay       = "🚫 No hay servicio para %s. Por favor, elige otra fecha."
	msgSaturdayHours   = "⚠️ Los sábados solo se atiende de %s a %s.\n\n🔍 Por favor, selecciona un horario dentro de este rango o elige otro día."
	msgWeekdayHours    = "⚠️ El horario de atención es de %s a %s.\n\n🔍 Por favor, selecciona un horario dentro de este rango."
	msgLunchHour       = "⚠️ De %s a %s es horario de comida. Por favor, elige otro horario."
	msgConflict        = "❌ ¡Demasiado tarde! El horario de las %s ya fue reservado."
	msgBooked          = "✅ ¡Cita confirmada! ✈️\n\nDetalles de tu cita:\n📅 Fecha: %s\n⏰ Hora: %s\n👨‍⚕️ Especialista: %s\n\n🎟️ TU CÓDIGO DE RESERVA ES: %s\n\n¡Gracias por confiar en nosotros! 🌟"

	msgCancelMissingCode = "⚠️ Error de cancelación: Falta el código de reserva (eventId/codigo_reserva)."
	msgCancelNotFound    = "🤷‍♀️ No se encontró ninguna cita con el código de reserva %s en este calendario. Verifica que el código sea correcto."
	msgCancelled         = "✅ La cita con código de reserva %s ha sido cancelada exitosamente."

	msgRescheduleMissing   = "⚠️ Error: Faltan datos. Se requiere codigo_reserva, fecha_reagendada y hora_reagendada."
	msgCodeNotFound        = "❌ No se encontró ninguna cita con el código de reserva %s. Verifica que el código sea correcto."
	msgRescheduleCancelled = "⚠️ Esta cita fue cancelada y ya no puede reagendarse. Por favor, agenda una nueva cita."
	msgRescheduleBadFormat = "⚠️ Error: Formato de fecha u hora inválido. Usa formato YYYY-MM-DD para fecha y HH:MM para hora."
	msgRescheduleOnHour    = "⚠️ Solo se permiten horarios en punto (por ejemplo: 10:00, 11:00, 12:00). Por favor elige una hora completa."
	msgReschedulePast      = "❌ No puedes reagendar citas para fechas pasadas.\n\n🔍 Por favor, selecciona una fecha de hoy en adelante."
	msgRescheduleSunday    = "🚫 No hay servicio los domingos. Por favor, selecciona otro día de la semana (Lunes a Sábado)."
	msgRescheduled         = "🔄 ¡Cita reagendada exitosamente! ✨\n\n📅 Detalles de tu nueva cita:\n• Fecha: %s\n• Hora: %s\n• Cliente: %s\n• Servicio: %s\n• Especialista: %s\n\n🎟️ TU CÓDIGO DE RESERVA: %s\n\n✅ Tu cita ha sido reagendada correctamente.\n📧 Recibirás un correo de confirmación.\n\n¡Gracias por confiar en nosotros! 🌟"

	msgConfirmMissing   = "⚠️ Error: Se requiere el codigo_reserva."
	msgConfirmCancelled = "⚠️ Esta cita ya fue cancelada. Si deseas agendar nuevamente, por favor comunícate con nosotros."
	msgAlreadyConfirmed = "✅ Tu cita ya estaba confirmada previamente.\n\n📅 Detalles:\n• Fecha: %s\n• Hora: %s\n• Con: %s\n\n¡Te esperamos! 🌟"
	msgConfirmFailed    = "❌ Error al confirmar la cita. Por favor, intenta nuevamente."
	msgConfirmed        = "✅ ¡Tu asistencia ha sido confirmada! 🎉\n\nNos alegra saber que nos visitarás pronto. ¡Te esperamos en tu sesión! 🌟"

	msgPhoneMissing = "⚠️ Error: Se requiere el teléfono."
	msgBadDate      = "⚠️ Error: La fecha debe tener el formato YYYY-MM-DD."
)
